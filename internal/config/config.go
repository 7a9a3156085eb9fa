package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Provider ProviderConfig `mapstructure:"provider"`
	TOTP     TOTPConfig     `mapstructure:"totp"`
	StepUp   StepUpConfig   `mapstructure:"step_up"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HTTPS           bool          `mapstructure:"https"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	SSLRootCert     string        `mapstructure:"ssl_root_cert"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	PoolSize int    `mapstructure:"pool_size"`
}

// ProviderConfig holds the external OIDC identity provider settings.
// The provider is the authority for the primary credential; this service
// only decides whether a second factor is required afterwards.
type ProviderConfig struct {
	IssuerURL      string   `mapstructure:"issuer_url"`
	ClientID       string   `mapstructure:"client_id"`
	ClientSecret   string   `mapstructure:"client_secret"`
	RedirectURL    string   `mapstructure:"redirect_url"`
	Scopes         []string `mapstructure:"scopes"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

type TOTPConfig struct {
	Issuer        string `mapstructure:"issuer"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

// StepUpConfig bounds the ephemeral step-up artifacts.
type StepUpConfig struct {
	ChallengeTTL  time.Duration `mapstructure:"challenge_ttl"`
	EmailCodeTTL  time.Duration `mapstructure:"email_code_ttl"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheCapacity int           `mapstructure:"cache_capacity"`
}

type NotifierConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// SecurityConfig holds secrets for service-to-service calls from the outer
// API layer.
type SecurityConfig struct {
	InternalServiceSecret string `mapstructure:"internal_service_secret"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/stepup-id/")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STEPUP")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("provider.client_secret", "PROVIDER_CLIENT_SECRET")
	viper.BindEnv("totp.encryption_key", "TOTP_ENCRYPTION_KEY")
	viper.BindEnv("security.internal_service_secret", "INTERNAL_SERVICE_SECRET")

	// Defaults
	viper.SetDefault("provider.timeout_seconds", 10)
	viper.SetDefault("totp.issuer", "StepUp-ID")
	viper.SetDefault("step_up.challenge_ttl", 10*time.Minute)
	viper.SetDefault("step_up.email_code_ttl", 10*time.Minute)
	viper.SetDefault("step_up.cache_ttl", 10*time.Minute)
	viper.SetDefault("step_up.cache_capacity", 10000)
	viper.SetDefault("notifier.timeout_seconds", 10)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Load from env if not in config
	if cfg.Database.Password == "" {
		cfg.Database.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Redis.Password == "" {
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.Provider.ClientSecret == "" {
		cfg.Provider.ClientSecret = os.Getenv("PROVIDER_CLIENT_SECRET")
	}
	if cfg.TOTP.EncryptionKey == "" {
		cfg.TOTP.EncryptionKey = os.Getenv("TOTP_ENCRYPTION_KEY")
	}
	if cfg.Security.InternalServiceSecret == "" {
		cfg.Security.InternalServiceSecret = os.Getenv("INTERNAL_SERVICE_SECRET")
	}

	// CRITICAL: Validate required credentials
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is required")
	}
	if cfg.Redis.Password == "" {
		return nil, fmt.Errorf("REDIS_PASSWORD environment variable is required")
	}
	if cfg.TOTP.EncryptionKey == "" {
		return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY environment variable is required")
	}

	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "require"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 10
	}
	if cfg.TOTP.Issuer == "" {
		cfg.TOTP.Issuer = "StepUp-ID"
	}
	if cfg.StepUp.ChallengeTTL == 0 {
		cfg.StepUp.ChallengeTTL = 10 * time.Minute
	}
	if cfg.StepUp.EmailCodeTTL == 0 {
		cfg.StepUp.EmailCodeTTL = 10 * time.Minute
	}
	if cfg.StepUp.CacheTTL == 0 {
		cfg.StepUp.CacheTTL = 10 * time.Minute
	}
	if cfg.StepUp.CacheCapacity == 0 {
		cfg.StepUp.CacheCapacity = 10000
	}

	// Generate internal service secret if not provided (dev only)
	if cfg.Security.InternalServiceSecret == "" {
		cfg.Security.InternalServiceSecret = "dev-internal-secret-change-in-production"
	}

	return &cfg, nil
}

// DSN returns PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
	if c.SSLRootCert != "" {
		dsn += "&sslrootcert=" + c.SSLRootCert
	}
	return dsn
}
