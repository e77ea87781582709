package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/models"
	"moneyminder/internal/services"
)

// AuthHandler handles registration, login, two-factor and profile requests.
type AuthHandler struct {
	authService  services.AuthServicer
	auditService services.AuditServicer
	cookie       CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService services.AuthServicer, auditService services.AuditServicer, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, auditService: auditService, cookie: cookie}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Currency string `json:"currency" binding:"omitempty,iso4217"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// EmailRequest carries a single email address.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TwoFactorLoginRequest completes a login that requires a second factor.
type TwoFactorLoginRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Code   string `json:"code" binding:"required,totp_code"`
}

// TwoFactorCodeRequest carries a TOTP code for the authenticated user.
type TwoFactorCodeRequest struct {
	Code string `json:"code" binding:"required,totp_code"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Currency         string     `json:"currency"`
	Bio              *string    `json:"bio,omitempty"`
	EmailVerified    bool       `json:"email_verified"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Currency:         u.Currency,
		Bio:              u.Bio,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

// AuthResponse represents the authentication response with token
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// TwoFactorChallengeResponse tells the client to submit a TOTP code.
type TwoFactorChallengeResponse struct {
	RequiresTwoFactor bool   `json:"requires_two_factor"`
	UserID            string `json:"user_id"`
}

// Register handles user registration
// @Summary     Register a new user
// @Description Create an unverified account and send a verification email
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RegisterRequest true "User registration data"
// @Success     201 {object} map[string]UserResponse "Registered user"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Failure     429 {object} ErrorResponse "Too many requests"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password, strings.ToUpper(req.Currency))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), user.ID, services.AuditRegister, "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
}

// Login handles user login
// @Summary     Login user
// @Description Check credentials. Sets the session cookie, or asks for a TOTP code when two-factor is on.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} AuthResponse "Authenticated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials or unverified email"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.RequiresTwoFactor {
		c.JSON(http.StatusOK, TwoFactorChallengeResponse{RequiresTwoFactor: true, UserID: result.User.ID})
		return
	}

	h.completeLogin(c, result, false)
}

// completeLogin sets the session cookie and returns the token and user.
func (h *AuthHandler) completeLogin(c *gin.Context, result *services.LoginResult, twoFactor bool) {
	setSessionCookie(c, h.cookie, result.Token)

	h.auditService.Log(c.Request.Context(), result.User.ID, services.AuditLogin, "user", result.User.ID, c.ClientIP(),
		map[string]interface{}{"two_factor": twoFactor})

	c.JSON(http.StatusOK, AuthResponse{Token: result.Token, User: newUserResponse(result.User)})
}

// Logout clears the session cookie
// @Summary     Logout
// @Tags        auth
// @Produce     json
// @Success     200 {object} SuccessResponse
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	clearSessionCookie(c, h.cookie)
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// VerifyEmail consumes an email verification token
// @Summary     Verify email
// @Tags        auth
// @Produce     json
// @Param       token query string true "Verification token"
// @Success     200 {object} SuccessResponse
// @Failure     400 {object} SuccessResponse "Missing token"
// @Failure     401 {object} SuccessResponse "Invalid or expired token"
// @Router      /auth/verify-email [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, SuccessResponse{Success: false, Message: "Verification token is required"})
		return
	}

	user, err := h.authService.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		status, message := http.StatusInternalServerError, apperrors.ErrInternalServer.Message
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			status, message = appErr.StatusCode, appErr.Message
		}
		c.JSON(status, SuccessResponse{Success: false, Message: message})
		return
	}

	h.auditService.Log(c.Request.Context(), user.ID, services.AuditVerifyEmail, "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Email verified successfully"})
}

// ResendVerification sends a fresh verification link
// @Summary     Resend verification email
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body EmailRequest true "Account email"
// @Success     200 {object} SuccessResponse
// @Failure     400 {object} ErrorResponse "Already verified"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.authService.ResendVerification(c.Request.Context(), req.Email); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// VerifyTwoFactor completes a two-factor login
// @Summary     Verify two-factor login
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body TwoFactorLoginRequest true "User ID and TOTP code"
// @Success     200 {object} AuthResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid code"
// @Router      /auth/two-factor/verify [post]
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req TwoFactorLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authService.VerifyTwoFactorLogin(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.completeLogin(c, result, true)
}

// Me reports the authenticated user
// @Summary     Current user
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{} "authenticated and user"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": newUserResponse(user)})
}

// SetupTwoFactor generates a TOTP secret for the user
// @Summary     Start two-factor setup
// @Tags        two-factor
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.TwoFactorSetup
// @Failure     409 {object} ErrorResponse "Already enabled"
// @Router      /auth/two-factor/setup [post]
func (h *AuthHandler) SetupTwoFactor(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	setup, err := h.authService.SetupTwoFactor(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditSetup2FA, "user", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, setup)
}

// ActivateTwoFactor confirms setup with a TOTP code
// @Summary     Activate two-factor
// @Tags        two-factor
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body TwoFactorCodeRequest true "TOTP code"
// @Success     200 {object} SuccessResponse
// @Failure     400 {object} ErrorResponse "Not set up"
// @Failure     401 {object} ErrorResponse "Invalid code"
// @Router      /auth/two-factor/activate [post]
func (h *AuthHandler) ActivateTwoFactor(c *gin.Context) {
	h.twoFactorTransition(c, h.authService.ActivateTwoFactor, services.AuditActivate2FA)
}

// DisableTwoFactor turns two-factor off with a current code
// @Summary     Disable two-factor
// @Tags        two-factor
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body TwoFactorCodeRequest true "TOTP code"
// @Success     200 {object} SuccessResponse
// @Failure     400 {object} ErrorResponse "Not enabled"
// @Failure     401 {object} ErrorResponse "Invalid code"
// @Router      /auth/two-factor/disable [post]
func (h *AuthHandler) DisableTwoFactor(c *gin.Context) {
	h.twoFactorTransition(c, h.authService.DisableTwoFactor, services.AuditDisable2FA)
}

func (h *AuthHandler) twoFactorTransition(c *gin.Context, apply func(ctx context.Context, userID, code string) error, action string) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TwoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := apply(c.Request.Context(), userID, req.Code); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, action, "user", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// GetProfile returns the user's profile
// @Summary     Get user profile
// @Tags        user
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// UpdateProfile applies a partial profile update
// @Summary     Update user profile
// @Tags        user
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body services.UserPatch true "Fields to change"
// @Success     200 {object} map[string]UserResponse "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input or no changes"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Router      /profile [patch]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var patch services.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	changed, err := h.authService.UpdateProfile(c.Request.Context(), userID, patch)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !changed {
		respondWithError(c, apperrors.ErrNoChanges)
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), userID, services.AuditUpdateProfile, "user", userID, c.ClientIP(), profileChanges(patch))

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

func profileChanges(p services.UserPatch) map[string]interface{} {
	changes := make(map[string]interface{})
	if p.Name != nil {
		changes["name"] = *p.Name
	}
	if p.Email != nil {
		changes["email"] = *p.Email
	}
	if p.Currency != nil {
		changes["currency"] = *p.Currency
	}
	if p.Bio != nil {
		changes["bio"] = true
	}
	return changes
}
