package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/models"
)

// userService is the credential store.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// normalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser stores an unverified user and its zeroed financial summary in
// one transaction.
func (s *userService) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.PasswordHash == "" || strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name, email and password are required")
	}

	taken, err := s.emailTaken(ctx, email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.ErrDuplicateEmail
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	token := in.VerificationToken
	expiresAt := in.VerificationTokenExpiresAt
	user := &models.User{
		Name:                       strings.TrimSpace(in.Name),
		Email:                      email,
		PasswordHash:               in.PasswordHash,
		Currency:                   currency,
		VerificationToken:          &token,
		VerificationTokenExpiresAt: &expiresAt,
	}
	if token == "" {
		user.VerificationToken = nil
		user.VerificationTokenExpiresAt = nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&models.FinancialSummary{UserID: user.ID}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return user, nil
}

// emailTaken includes soft-deleted rows because the unique index does.
func (s *userService) emailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	q := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("email = ?", email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

func (s *userService) findOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email = ?", normalizeEmail(email))
}

// GetUserByVerificationToken retrieves the user holding an unconsumed token.
func (s *userService) GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.ErrUserNotFound
	}
	return s.findOne(ctx, "verification_token = ?", token)
}

// UpdateUser applies the non-nil fields of patch. It returns false without
// touching the store when the patch is empty.
func (s *userService) UpdateUser(ctx context.Context, id string, patch UserPatch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}

	if _, err := s.GetUserByID(ctx, id); err != nil {
		return false, err
	}

	updates := make(map[string]interface{})
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "name must not be empty")
		}
		updates["name"] = name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "email must not be empty")
		}
		taken, err := s.emailTaken(ctx, email, id)
		if err != nil {
			return false, err
		}
		if taken {
			return false, apperrors.ErrDuplicateEmail
		}
		updates["email"] = email
	}
	if patch.Currency != nil {
		updates["currency"] = strings.ToUpper(*patch.Currency)
	}
	if patch.Bio != nil {
		updates["bio"] = *patch.Bio
	}

	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, apperrors.ErrDuplicateEmail
		}
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return true, nil
}

// SetVerificationToken replaces the pending token of an unverified user.
func (s *userService) SetVerificationToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND email_verified = ?", id, false).
		Updates(map[string]interface{}{
			"verification_token":            token,
			"verification_token_expires_at": expiresAt,
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// MarkEmailVerified consumes token. The update is conditional on the token
// still being present, so two concurrent submissions cannot both succeed.
func (s *userService) MarkEmailVerified(ctx context.Context, id, token string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND verification_token = ?", id, token).
		Updates(map[string]interface{}{
			"email_verified":                true,
			"verification_token":            nil,
			"verification_token_expires_at": nil,
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrInvalidToken
	}
	return nil
}

// SetTwoFactorSecret stores a pending secret. Two-factor stays disabled until
// EnableTwoFactor.
func (s *userService) SetTwoFactorSecret(ctx context.Context, id, secret string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND two_factor_enabled = ?", id, false).
		Update("two_factor_secret", secret)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTwoFactorAlreadyEnabled
	}
	return nil
}

// EnableTwoFactor flips the flag only when a secret is stored.
func (s *userService) EnableTwoFactor(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND two_factor_secret IS NOT NULL", id).
		Update("two_factor_enabled", true)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTwoFactorNotSetup
	}
	return nil
}

// DisableTwoFactor clears both the flag and the secret.
func (s *userService) DisableTwoFactor(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"two_factor_enabled": false,
			"two_factor_secret":  nil,
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (s *userService) RecordLogin(ctx context.Context, id string, at time.Time) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
