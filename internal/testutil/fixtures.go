package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"moneyminder/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// D parses a decimal literal, panicking on malformed input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates a verified user with a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a verified user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Name:          "Test User",
		Email:         email,
		PasswordHash:  string(hash),
		Currency:      "USD",
		EmailVerified: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateUnverifiedUser creates a user holding a pending verification token.
func CreateUnverifiedUser(t *testing.T, db *gorm.DB, token string, expiresAt time.Time) *models.User {
	t.Helper()

	user := CreateTestUser(t, db)
	err := db.Model(user).Updates(map[string]interface{}{
		"email_verified":                false,
		"verification_token":            token,
		"verification_token_expires_at": expiresAt,
	}).Error
	if err != nil {
		t.Fatalf("failed to mark test user unverified: %v", err)
	}
	user.EmailVerified = false
	user.VerificationToken = &token
	user.VerificationTokenExpiresAt = &expiresAt
	return user
}

// EnableTestTwoFactor stores secret for the user and turns 2FA on.
func EnableTestTwoFactor(t *testing.T, db *gorm.DB, user *models.User, secret string) {
	t.Helper()

	err := db.Model(user).Updates(map[string]interface{}{
		"two_factor_secret":  secret,
		"two_factor_enabled": true,
	}).Error
	if err != nil {
		t.Fatalf("failed to enable two-factor for test user: %v", err)
	}
	user.TwoFactorSecret = &secret
	user.TwoFactorEnabled = true
}

// CreateTestTransaction inserts a ledger row directly, bypassing the summary.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, amount string, date time.Time) *models.Transaction {
	t.Helper()

	txn := &models.Transaction{
		UserID:      userID,
		Date:        date,
		Description: fmt.Sprintf("Test Transaction %d", nextID()),
		Amount:      D(amount),
		Category:    "Other",
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return txn
}

// CreateTestGoal creates a savings goal due in 30 days.
func CreateTestGoal(t *testing.T, db *gorm.DB, userID, target, current string) *models.SavingsGoal {
	t.Helper()

	goal := &models.SavingsGoal{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Goal %d", nextID()),
		Target:   D(target),
		Current:  D(current),
		Deadline: time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 30),
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// CreateTestSummary stores a summary row with the given totals.
func CreateTestSummary(t *testing.T, db *gorm.DB, userID, income, expenses string) *models.FinancialSummary {
	t.Helper()

	summary := &models.FinancialSummary{
		UserID:   userID,
		Income:   D(income),
		Expenses: D(expenses),
	}
	summary.Recompute()
	if err := db.Create(summary).Error; err != nil {
		t.Fatalf("failed to create test summary: %v", err)
	}
	return summary
}
