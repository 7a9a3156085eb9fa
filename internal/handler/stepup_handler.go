package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stepup-id/api/internal/pkg/apperror"
	"github.com/stepup-id/api/internal/pkg/response"
	"github.com/stepup-id/api/internal/service/login"
)

// StepUpHandler exposes the step-up surface to the outer login service
type StepUpHandler struct {
	loginService *login.Service
}

func NewStepUpHandler(loginService *login.Service) *StepUpHandler {
	return &StepUpHandler{loginService: loginService}
}

type beginRequest struct {
	IdentityID string `json:"identity_id" binding:"required"`
}

type completeRequest struct {
	IdentityID     string `json:"identity_id" binding:"required"`
	ChallengeToken string `json:"challenge_token" binding:"required"`
	Code           string `json:"code" binding:"required"`
}

type confirmRequest struct {
	IdentityID string `json:"identity_id" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// Begin re-runs the step-up decision for an identity whose primary
// credential was already verified. A failed attempt spends the
// challenge, so the caller comes back here for a fresh one.
func (h *StepUpHandler) Begin(c *gin.Context) {
	var req beginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationError("Provide identity_id"))
		return
	}
	identityID, ok := parseIdentityID(c, req.IdentityID)
	if !ok {
		return
	}

	resp, err := h.loginService.BeginLogin(c.Request.Context(), identityID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

// Complete settles an outstanding challenge with the enrolled factor's code
func (h *StepUpHandler) Complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationError("Provide identity_id, challenge_token and code"))
		return
	}
	identityID, ok := parseIdentityID(c, req.IdentityID)
	if !ok {
		return
	}

	resp, err := h.loginService.CompleteLogin(c.Request.Context(), identityID,
		req.ChallengeToken, req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

// CompleteWithRecoveryCode settles an outstanding challenge with a
// fallback recovery code
func (h *StepUpHandler) CompleteWithRecoveryCode(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationError("Provide identity_id, challenge_token and code"))
		return
	}
	identityID, ok := parseIdentityID(c, req.IdentityID)
	if !ok {
		return
	}

	resp, err := h.loginService.CompleteLoginWithRecoveryCode(c.Request.Context(), identityID,
		req.ChallengeToken, req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

// EnrollTOTP starts authenticator enrollment and returns the
// provisioning secret
func (h *StepUpHandler) EnrollTOTP(c *gin.Context) {
	var req beginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationError("Provide identity_id"))
		return
	}
	identityID, ok := parseIdentityID(c, req.IdentityID)
	if !ok {
		return
	}

	resp, err := h.loginService.EnrollTOTP(c.Request.Context(), identityID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

// ConfirmTOTP activates a pending authenticator factor; the response
// carries the one-time recovery code batch
func (h *StepUpHandler) ConfirmTOTP(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationError("Provide identity_id and code"))
		return
	}
	identityID, ok := parseIdentityID(c, req.IdentityID)
	if !ok {
		return
	}

	resp, err := h.loginService.ConfirmTOTP(c.Request.Context(), identityID,
		req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Created(c, resp)
}

// EnrollEmail activates the email factor in one step
func (h *StepUpHandler) EnrollEmail(c *gin.Context) {
	var req beginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationError("Provide identity_id"))
		return
	}
	identityID, ok := parseIdentityID(c, req.IdentityID)
	if !ok {
		return
	}

	if err := h.loginService.EnrollEmail(c.Request.Context(), identityID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.NoContent(c)
}

// Disable turns the second factor off and discards its recovery codes
func (h *StepUpHandler) Disable(c *gin.Context) {
	var req beginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationError("Provide identity_id"))
		return
	}
	identityID, ok := parseIdentityID(c, req.IdentityID)
	if !ok {
		return
	}

	if err := h.loginService.Disable(c.Request.Context(), identityID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.NoContent(c)
}

// Status reports the identity's current factor state
func (h *StepUpHandler) Status(c *gin.Context) {
	identityID, ok := parseIdentityID(c, c.Param("identity_id"))
	if !ok {
		return
	}

	resp, err := h.loginService.Status(c.Request.Context(), identityID)
	if err != nil {
		response.ErrorFromErr(c, err)
		return
	}
	response.Success(c, resp)
}

func parseIdentityID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.ValidationError("identity_id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
