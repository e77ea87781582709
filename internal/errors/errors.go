// Package errors provides the application error taxonomy for the MoneyMinder API.
// Service-layer failures are returned as *AppError so the HTTP boundary can map
// them to a status code and a stable error code without leaking internals.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches another *AppError by code, so wrapped copies of a sentinel
// still satisfy errors.Is(err, ErrX).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication errors.
var (
	ErrUnauthorized     = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidPassword  = &AppError{Code: "INVALID_PASSWORD", Message: "Invalid password", StatusCode: http.StatusUnauthorized}
	ErrEmailNotVerified = &AppError{Code: "EMAIL_NOT_VERIFIED", Message: "Please verify your email address before logging in", StatusCode: http.StatusUnauthorized}
	ErrInvalidToken     = &AppError{Code: "INVALID_TOKEN", Message: "Invalid or already used token", StatusCode: http.StatusUnauthorized}
	ErrExpiredToken     = &AppError{Code: "EXPIRED_TOKEN", Message: "Token has expired", StatusCode: http.StatusUnauthorized}
	ErrInvalidCode      = &AppError{Code: "INVALID_CODE", Message: "Invalid verification code", StatusCode: http.StatusUnauthorized}
	ErrInvalidAPIKey    = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrRateLimited      = &AppError{Code: "RATE_LIMITED", Message: "Too many requests, try again later", StatusCode: http.StatusTooManyRequests}
)

// Two-factor setup errors.
var (
	ErrTwoFactorNotSetup       = &AppError{Code: "TWO_FACTOR_NOT_SETUP", Message: "Two-factor authentication has not been set up", StatusCode: http.StatusBadRequest}
	ErrTwoFactorAlreadyEnabled = &AppError{Code: "TWO_FACTOR_ALREADY_ENABLED", Message: "Two-factor authentication is already enabled", StatusCode: http.StatusConflict}
	ErrTwoFactorNotEnabled     = &AppError{Code: "TWO_FACTOR_NOT_ENABLED", Message: "Two-factor authentication is not enabled", StatusCode: http.StatusBadRequest}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNoChanges      = &AppError{Code: "NO_CHANGES", Message: "No changes were made", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Unconfigured optional features.
var (
	ErrAdvisorNotConfigured = &AppError{Code: "ADVISOR_NOT_CONFIGURED", Message: "The financial advisor is not configured", StatusCode: http.StatusServiceUnavailable}
	ErrAdminNotConfigured   = &AppError{Code: "ADMIN_NOT_CONFIGURED", Message: "Admin endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Ledger errors.
var (
	ErrGoalNotFound = &AppError{Code: "GOAL_NOT_FOUND", Message: "Savings goal not found", StatusCode: http.StatusNotFound}
)
