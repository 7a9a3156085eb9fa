package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/stepup-id/api/internal/infrastructure/idp"
	"github.com/stepup-id/api/internal/pkg/apperror"
	"github.com/stepup-id/api/internal/pkg/response"
	"github.com/stepup-id/api/internal/service/login"
)

type AuthHandler struct {
	idpClient    *idp.Client
	loginService *login.Service
}

func NewAuthHandler(idpClient *idp.Client, loginService *login.Service) *AuthHandler {
	return &AuthHandler{idpClient: idpClient, loginService: loginService}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the step-up decision plus, on direct
// authentication, the provider tokens
type LoginResponse struct {
	*login.BeginLoginResponse
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Login verifies the primary credential against the identity provider
// and runs the step-up decision for the resolved identity
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationError("Provide username and password"))
		return
	}

	ctx := c.Request.Context()

	tokens, err := h.idpClient.ExchangePassword(ctx, req.Username, req.Password)
	if err != nil {
		response.Error(c, apperror.InvalidCredentials().WithError(err))
		return
	}

	claims, err := h.idpClient.VerifyIDToken(ctx, tokens.IDToken)
	if err != nil {
		response.Error(c, apperror.InvalidCredentials().WithError(err))
		return
	}

	identity, err := h.loginService.ResolveIdentity(ctx, claims.Subject)
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}

	resp, err := h.loginService.BeginLogin(ctx, identity.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}

	out := LoginResponse{BeginLoginResponse: resp}
	// Provider tokens are withheld until the challenge is settled
	if resp.Status == login.StatusAuthenticated {
		out.AccessToken = tokens.AccessToken
		out.RefreshToken = tokens.RefreshToken
		out.ExpiresIn = tokens.ExpiresIn
	}
	response.Success(c, out)
}
