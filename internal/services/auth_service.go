package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/logger"
	"moneyminder/internal/mailer"
	"moneyminder/internal/metrics"
	"moneyminder/internal/models"
	"moneyminder/internal/security"
	"moneyminder/internal/totp"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// AuthDependencies wires the collaborators of the auth service.
type AuthDependencies struct {
	Users           UserServicer
	Hasher          *security.PasswordHasher
	Sessions        *security.SessionCodec
	TOTP            *totp.Engine
	Mailer          mailer.Mailer
	Metrics         *metrics.Metrics
	AppURL          string
	VerificationTTL time.Duration
}

// authService handles registration, login and two-factor flows.
type authService struct {
	users           UserServicer
	hasher          *security.PasswordHasher
	sessions        *security.SessionCodec
	totp            *totp.Engine
	mailer          mailer.Mailer
	metrics         *metrics.Metrics
	appURL          string
	verificationTTL time.Duration
	now             func() time.Time
}

// NewAuthService creates a new AuthServicer.
func NewAuthService(deps AuthDependencies) AuthServicer {
	return newAuthService(deps)
}

func newAuthService(deps AuthDependencies) *authService {
	ttl := deps.VerificationTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &authService{
		users:           deps.Users,
		hasher:          deps.Hasher,
		sessions:        deps.Sessions,
		totp:            deps.TOTP,
		mailer:          deps.Mailer,
		metrics:         deps.Metrics,
		appURL:          strings.TrimRight(deps.AppURL, "/"),
		verificationTTL: ttl,
		now:             time.Now,
	}
}

// Register creates an unverified user with a fresh verification token and
// emails the verification link. A failed email is logged, not returned; the
// user can ask for a new link.
func (s *authService) Register(ctx context.Context, name, email, password, currency string) (user *models.User, err error) {
	defer func() { s.metrics.AuthEvent("register", err) }()

	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name and email are required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "password must be at least 8 characters")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	token, err := security.GenerateOpaqueToken()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user, err = s.users.CreateUser(ctx, NewUser{
		Name:                       name,
		Email:                      email,
		PasswordHash:               hash,
		Currency:                   currency,
		VerificationToken:          token,
		VerificationTokenExpiresAt: s.now().Add(s.verificationTTL),
	})
	if err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, user, token); err != nil {
		logger.Get().Warnw("failed to send verification email", "error", err, "user_id", user.ID)
	}
	return user, nil
}

func (s *authService) sendVerification(ctx context.Context, user *models.User, token string) error {
	return s.mailer.SendVerification(ctx, mailer.Verification{
		To:        user.Email,
		Name:      user.Name,
		Link:      s.appURL + "/verify-email?token=" + url.QueryEscape(token),
		ExpiresIn: s.verificationTTL,
	})
}

// VerifyEmail consumes a verification token.
func (s *authService) VerifyEmail(ctx context.Context, token string) (user *models.User, err error) {
	defer func() { s.metrics.AuthEvent("verify_email", err) }()

	user, err = s.users.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}

	if user.VerificationTokenExpiresAt != nil && !s.now().Before(*user.VerificationTokenExpiresAt) {
		return nil, apperrors.ErrExpiredToken
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID, token); err != nil {
		return nil, err
	}

	user.EmailVerified = true
	user.VerificationToken = nil
	user.VerificationTokenExpiresAt = nil
	return user, nil
}

// ResendVerification issues a new token to an unverified user, invalidating
// the previous one.
func (s *authService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "email is already verified")
	}

	token, err := security.GenerateOpaqueToken()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, token, s.now().Add(s.verificationTTL)); err != nil {
		return err
	}
	if err := s.sendVerification(ctx, user, token); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Login checks the password. Users with two-factor enabled get a pending
// result without a token.
func (s *authService) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidPassword
	}
	if !user.EmailVerified {
		return nil, apperrors.ErrEmailNotVerified
	}

	if user.TwoFactorEnabled {
		return &LoginResult{User: user, RequiresTwoFactor: true}, nil
	}
	return s.issueSession(ctx, user)
}

// VerifyTwoFactorLogin completes a pending login with a TOTP code.
func (s *authService) VerifyTwoFactorLogin(ctx context.Context, userID, code string) (result *LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("two_factor_login", err) }()

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		return nil, apperrors.ErrEmailNotVerified
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return nil, apperrors.ErrInvalidCode
	}
	if !s.totp.Verify(code, *user.TwoFactorSecret, s.now()) {
		return nil, apperrors.ErrInvalidCode
	}
	return s.issueSession(ctx, user)
}

func (s *authService) issueSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	token, expiresAt, err := s.sessions.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		logger.Get().Warnw("failed to record login time", "error", err, "user_id", user.ID)
	} else {
		user.LastLoginAt = &now
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// SetupTwoFactor generates and stores a new secret. Two-factor stays off
// until ActivateTwoFactor confirms a code, so a bad scan cannot lock the user
// out. Calling it again before activation replaces the pending secret.
func (s *authService) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, apperrors.ErrTwoFactorAlreadyEnabled
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	uri, err := s.totp.ProvisioningURI(user.Email, "", secret)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	qr, err := s.totp.QRCodeDataURL(uri)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.users.SetTwoFactorSecret(ctx, user.ID, secret); err != nil {
		return nil, err
	}

	return &TwoFactorSetup{Secret: secret, OTPAuthURL: uri, QRCode: qr}, nil
}

// ActivateTwoFactor turns two-factor on after one valid code.
func (s *authService) ActivateTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return apperrors.ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == nil {
		return apperrors.ErrTwoFactorNotSetup
	}
	if !s.totp.Verify(code, *user.TwoFactorSecret, s.now()) {
		return apperrors.ErrInvalidCode
	}
	return s.users.EnableTwoFactor(ctx, user.ID)
}

// DisableTwoFactor turns two-factor off. A current code is required.
func (s *authService) DisableTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return apperrors.ErrTwoFactorNotEnabled
	}
	if !s.totp.Verify(code, *user.TwoFactorSecret, s.now()) {
		return apperrors.ErrInvalidCode
	}
	return s.users.DisableTwoFactor(ctx, user.ID)
}

func (s *authService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, patch UserPatch) (bool, error) {
	return s.users.UpdateUser(ctx, userID, patch)
}

// Authenticate verifies a session token.
func (s *authService) Authenticate(_ context.Context, token string) (*security.SessionClaims, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	claims, err := s.sessions.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, apperrors.Wrap(apperrors.ErrExpiredToken, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, err)
	}
	return claims, nil
}
