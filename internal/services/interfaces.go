package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"moneyminder/internal/models"
	"moneyminder/internal/pagination"
	"moneyminder/internal/security"
)

// NewUser carries the fields needed to create an unverified account.
type NewUser struct {
	Name                       string
	Email                      string
	PasswordHash               string
	Currency                   string
	VerificationToken          string
	VerificationTokenExpiresAt time.Time
}

// UserPatch is a partial profile update. Nil fields are left unchanged.
type UserPatch struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=255"`
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Currency *string `json:"currency" binding:"omitempty,iso4217"`
	Bio      *string `json:"bio" binding:"omitempty,max=2000"`
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Currency == nil && p.Bio == nil
}

// UserServicer is the credential store: persistence of users and their
// verification and two-factor state.
type UserServicer interface {
	CreateUser(ctx context.Context, in NewUser) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (bool, error)
	SetVerificationToken(ctx context.Context, id, token string, expiresAt time.Time) error
	MarkEmailVerified(ctx context.Context, id, token string) error
	SetTwoFactorSecret(ctx context.Context, id, secret string) error
	EnableTwoFactor(ctx context.Context, id string) error
	DisableTwoFactor(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// LoginResult is the outcome of a password check. When RequiresTwoFactor is
// set, Token is empty and the client must complete VerifyTwoFactorLogin.
type LoginResult struct {
	User              *models.User
	Token             string
	ExpiresAt         time.Time
	RequiresTwoFactor bool
}

// TwoFactorSetup is what an authenticator app needs to enrol.
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

// AuthServicer drives registration, verification, login and two-factor
// state transitions.
type AuthServicer interface {
	Register(ctx context.Context, name, email, password, currency string) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	VerifyTwoFactorLogin(ctx context.Context, userID, code string) (*LoginResult, error)
	SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error)
	ActivateTwoFactor(ctx context.Context, userID, code string) error
	DisableTwoFactor(ctx context.Context, userID, code string) error
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, patch UserPatch) (bool, error)
	Authenticate(ctx context.Context, token string) (*security.SessionClaims, error)
}

// SummaryPatch overwrites income and/or expenses.
type SummaryPatch struct {
	Income   *decimal.Decimal `json:"income" binding:"omitempty,decimal_nonnegative"`
	Expenses *decimal.Decimal `json:"expenses" binding:"omitempty,decimal_nonnegative"`
}

// SummaryServicer maintains the per-user FinancialSummary.
type SummaryServicer interface {
	GetSummary(ctx context.Context, userID string) (*models.FinancialSummary, error)
	UpdateSummary(ctx context.Context, userID string, patch SummaryPatch) (bool, error)
	ApplyTransaction(tx *gorm.DB, userID string, amount decimal.Decimal) error
	Reconcile(ctx context.Context, userID string) (*models.FinancialSummary, error)
}

// NewTransaction is a ledger entry to record.
type NewTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    string
}

// TransactionServicer records and lists ledger entries.
type TransactionServicer interface {
	AddTransaction(ctx context.Context, userID string, in NewTransaction) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.Page[models.Transaction], error)
}

// NewGoal is a savings goal to create.
type NewGoal struct {
	Name     string
	Target   decimal.Decimal
	Current  decimal.Decimal
	Deadline time.Time
}

// GoalPatch is a partial goal update. Nil fields are left unchanged.
type GoalPatch struct {
	Name     *string
	Target   *decimal.Decimal
	Current  *decimal.Decimal
	Deadline *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p GoalPatch) IsEmpty() bool {
	return p.Name == nil && p.Target == nil && p.Current == nil && p.Deadline == nil
}

// GoalServicer manages savings goals.
type GoalServicer interface {
	AddGoal(ctx context.Context, userID string, in NewGoal) (*models.SavingsGoal, error)
	ListGoals(ctx context.Context, userID string) ([]models.SavingsGoal, error)
	GetGoal(ctx context.Context, userID, goalID string) (*models.SavingsGoal, error)
	ContributeToGoal(ctx context.Context, userID, goalID string, amount decimal.Decimal) (*models.SavingsGoal, error)
	UpdateGoal(ctx context.Context, userID, goalID string, patch GoalPatch) (bool, error)
	DeleteGoal(ctx context.Context, userID, goalID string) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
