package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stepup-id/api/internal/config"
	"github.com/stepup-id/api/internal/middleware"
)

func NewRouter(
	cfg *config.Config,
	healthHandler *HealthHandler,
	authHandler *AuthHandler,
	stepUpHandler *StepUpHandler,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware (order matters!)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecurityHeaders(cfg.Server.HTTPS))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS))

	// Health endpoints (no auth required)
	r.GET("/health", healthHandler.Shallow)
	r.GET("/health/ready", healthHandler.Ready)

	// Prometheus metrics endpoint (restrict to internal IPs in production)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}

		// Step-up surface, reachable only by the outer login service
		stepup := v1.Group("/stepup")
		stepup.Use(middleware.InternalOnly(cfg.Security.InternalServiceSecret))
		{
			stepup.POST("/begin", stepUpHandler.Begin)
			stepup.POST("/complete", stepUpHandler.Complete)
			stepup.POST("/recovery/complete", stepUpHandler.CompleteWithRecoveryCode)

			totp := stepup.Group("/totp")
			{
				totp.POST("/enroll", stepUpHandler.EnrollTOTP)
				totp.POST("/confirm", stepUpHandler.ConfirmTOTP)
			}

			email := stepup.Group("/email")
			{
				email.POST("/enroll", stepUpHandler.EnrollEmail)
			}

			stepup.POST("/disable", stepUpHandler.Disable)
			stepup.GET("/status/:identity_id", stepUpHandler.Status)
		}
	}

	return r
}
