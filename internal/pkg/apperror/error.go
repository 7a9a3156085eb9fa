package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the machine-readable classification of an authentication
// outcome. Every expected, user-facing failure carries one; callers branch
// on the kind, never on message text.
type Kind string

const (
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindNotEnrolled           Kind = "not_enrolled"
	KindAlreadyEnrolled       Kind = "already_enrolled"
	KindInvalidCode           Kind = "invalid_code"
	KindExpiredChallenge      Kind = "expired_challenge"
	KindExpiredCode           Kind = "expired_code"
	KindChallengeNotFound     Kind = "challenge_not_found"
	KindRecoveryCodeExhausted Kind = "recovery_code_exhausted"
	KindTooManyAttempts       Kind = "too_many_attempts"
	KindTransportFailure      Kind = "transport_failure"
	KindStoreUnavailable      Kind = "store_unavailable"
	KindValidation            Kind = "validation_error"
	KindInternal              Kind = "internal_error"
)

// AppError represents RFC 7807 Problem Details with a step-up error kind.
// Messages must never contain raw codes, tokens, or secrets.
type AppError struct {
	Type      string `json:"type"`
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	err       error  // internal error for logging
}

func (e *AppError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Title, e.err)
	}
	return e.Title
}

func (e *AppError) Unwrap() error {
	return e.err
}

func (e *AppError) WithError(err error) *AppError {
	e.err = err
	return e
}

func (e *AppError) WithRequestID(id string) *AppError {
	e.RequestID = id
	return e
}

func (e *AppError) WithInstance(instance string) *AppError {
	e.Instance = instance
	return e
}

// KindOf extracts the kind from an error, or KindInternal for anything
// that is not an AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func newError(kind Kind, status int, title, detail string) *AppError {
	return &AppError{
		Type:   "https://stepup-id.dev/errors/" + string(kind),
		Kind:   kind,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// Expected authentication outcomes, all 4xx.

func InvalidCredentials() *AppError {
	return newError(KindInvalidCredentials, http.StatusUnauthorized,
		"Invalid username or password",
		"Check the credentials and try again")
}

func NotEnrolled() *AppError {
	return newError(KindNotEnrolled, http.StatusConflict,
		"No second factor enrolled",
		"Enroll a second factor before confirming or verifying one")
}

func AlreadyEnrolled() *AppError {
	return newError(KindAlreadyEnrolled, http.StatusConflict,
		"A second factor is already active",
		"Disable the current factor before enrolling a new one")
}

func InvalidCode() *AppError {
	return newError(KindInvalidCode, http.StatusUnauthorized,
		"Verification code does not match",
		"Check the code and restart the login to try again")
}

func ExpiredChallenge() *AppError {
	return newError(KindExpiredChallenge, http.StatusUnauthorized,
		"Login challenge has expired",
		"Log in again to receive a new challenge")
}

func ExpiredCode() *AppError {
	return newError(KindExpiredCode, http.StatusUnauthorized,
		"Verification code has expired",
		"Request a new code and try again")
}

func ChallengeNotFound() *AppError {
	return newError(KindChallengeNotFound, http.StatusUnauthorized,
		"No matching login challenge",
		"The challenge was already used or never issued; log in again")
}

func RecoveryCodeExhausted() *AppError {
	return newError(KindRecoveryCodeExhausted, http.StatusUnauthorized,
		"Recovery code not in the remaining set",
		"The code was already used or is not valid for this account")
}

func TooManyAttempts(retryAfter time.Duration) *AppError {
	minutes := int(retryAfter.Minutes()) + 1
	return newError(KindTooManyAttempts, http.StatusTooManyRequests,
		"Too many failed attempts",
		fmt.Sprintf("Verification is locked; try again in %d minutes", minutes))
}

func TransportFailure() *AppError {
	return newError(KindTransportFailure, http.StatusBadGateway,
		"Could not deliver the verification code",
		"Request a new code in a moment")
}

// Infrastructure failures.

func StoreUnavailable(err error) *AppError {
	return newError(KindStoreUnavailable, http.StatusServiceUnavailable,
		"Backing store unavailable",
		"Try again shortly").WithError(err)
}

// Generic request errors used by the HTTP layer.

func ValidationError(detail string) *AppError {
	return newError(KindValidation, http.StatusBadRequest,
		"Invalid request", detail)
}

func InternalError(detail string) *AppError {
	return newError(KindInternal, http.StatusInternalServerError,
		"Internal error", detail)
}
