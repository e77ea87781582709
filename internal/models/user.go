package models

import "time"

// User is a registered account holder. Secrets and hashes never serialize.
type User struct {
	Base
	Name                       string     `gorm:"not null" json:"name"`
	Email                      string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash               string     `gorm:"not null" json:"-"`
	Currency                   string     `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Bio                        *string    `json:"bio,omitempty"`
	EmailVerified              bool       `gorm:"not null;default:false" json:"email_verified"`
	VerificationToken          *string    `gorm:"size:64;uniqueIndex" json:"-"`
	VerificationTokenExpiresAt *time.Time `json:"-"`
	TwoFactorEnabled           bool       `gorm:"not null;default:false" json:"two_factor_enabled"`
	TwoFactorSecret            *string    `gorm:"size:64" json:"-"`
	LastLoginAt                *time.Time `json:"last_login_at,omitempty"`

	Summary      *FinancialSummary `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Transactions []Transaction     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Goals        []SavingsGoal     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// HasPendingTwoFactorSetup reports whether a secret was generated but not yet
// confirmed with a code.
func (u *User) HasPendingTwoFactorSetup() bool {
	return !u.TwoFactorEnabled && u.TwoFactorSecret != nil
}
