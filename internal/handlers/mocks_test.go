package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"moneyminder/internal/logger"
	"moneyminder/internal/middleware"
	"moneyminder/internal/models"
	"moneyminder/internal/pagination"
	"moneyminder/internal/security"
	"moneyminder/internal/services"
	"moneyminder/internal/validator"
)

// --- mock services ---

type mockAuthService struct {
	registerFn          func(name, email, password, currency string) (*models.User, error)
	verifyEmailFn       func(token string) (*models.User, error)
	resendFn            func(email string) error
	loginFn             func(email, password string) (*services.LoginResult, error)
	verifyTwoFactorFn   func(userID, code string) (*services.LoginResult, error)
	setupTwoFactorFn    func(userID string) (*services.TwoFactorSetup, error)
	activateTwoFactorFn func(userID, code string) error
	disableTwoFactorFn  func(userID, code string) error
	getProfileFn        func(userID string) (*models.User, error)
	updateProfileFn     func(userID string, patch services.UserPatch) (bool, error)
	authenticateFn      func(token string) (*security.SessionClaims, error)
}

func (m *mockAuthService) Register(_ context.Context, name, email, password, currency string) (*models.User, error) {
	if m.registerFn != nil {
		return m.registerFn(name, email, password, currency)
	}
	return &models.User{}, nil
}

func (m *mockAuthService) VerifyEmail(_ context.Context, token string) (*models.User, error) {
	if m.verifyEmailFn != nil {
		return m.verifyEmailFn(token)
	}
	return &models.User{}, nil
}

func (m *mockAuthService) ResendVerification(_ context.Context, email string) error {
	if m.resendFn != nil {
		return m.resendFn(email)
	}
	return nil
}

func (m *mockAuthService) Login(_ context.Context, email, password string) (*services.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(email, password)
	}
	return &services.LoginResult{User: &models.User{}}, nil
}

func (m *mockAuthService) VerifyTwoFactorLogin(_ context.Context, userID, code string) (*services.LoginResult, error) {
	if m.verifyTwoFactorFn != nil {
		return m.verifyTwoFactorFn(userID, code)
	}
	return &services.LoginResult{User: &models.User{}}, nil
}

func (m *mockAuthService) SetupTwoFactor(_ context.Context, userID string) (*services.TwoFactorSetup, error) {
	if m.setupTwoFactorFn != nil {
		return m.setupTwoFactorFn(userID)
	}
	return &services.TwoFactorSetup{}, nil
}

func (m *mockAuthService) ActivateTwoFactor(_ context.Context, userID, code string) error {
	if m.activateTwoFactorFn != nil {
		return m.activateTwoFactorFn(userID, code)
	}
	return nil
}

func (m *mockAuthService) DisableTwoFactor(_ context.Context, userID, code string) error {
	if m.disableTwoFactorFn != nil {
		return m.disableTwoFactorFn(userID, code)
	}
	return nil
}

func (m *mockAuthService) GetProfile(_ context.Context, userID string) (*models.User, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(userID)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

func (m *mockAuthService) UpdateProfile(_ context.Context, userID string, patch services.UserPatch) (bool, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(userID, patch)
	}
	return true, nil
}

func (m *mockAuthService) Authenticate(_ context.Context, token string) (*security.SessionClaims, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(token)
	}
	return &security.SessionClaims{}, nil
}

type mockSummaryService struct {
	getSummaryFn    func(userID string) (*models.FinancialSummary, error)
	updateSummaryFn func(userID string, patch services.SummaryPatch) (bool, error)
	reconcileFn     func(userID string) (*models.FinancialSummary, error)
}

func (m *mockSummaryService) GetSummary(_ context.Context, userID string) (*models.FinancialSummary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(userID)
	}
	return &models.FinancialSummary{UserID: userID}, nil
}

func (m *mockSummaryService) UpdateSummary(_ context.Context, userID string, patch services.SummaryPatch) (bool, error) {
	if m.updateSummaryFn != nil {
		return m.updateSummaryFn(userID, patch)
	}
	return true, nil
}

func (m *mockSummaryService) ApplyTransaction(_ *gorm.DB, _ string, _ decimal.Decimal) error {
	return nil
}

func (m *mockSummaryService) Reconcile(_ context.Context, userID string) (*models.FinancialSummary, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(userID)
	}
	return &models.FinancialSummary{UserID: userID}, nil
}

type mockTransactionService struct {
	addFn  func(userID string, in services.NewTransaction) (*models.Transaction, error)
	listFn func(userID string, page pagination.PageRequest) (*pagination.Page[models.Transaction], error)
}

func (m *mockTransactionService) AddTransaction(_ context.Context, userID string, in services.NewTransaction) (*models.Transaction, error) {
	if m.addFn != nil {
		return m.addFn(userID, in)
	}
	return &models.Transaction{UserID: userID, Amount: in.Amount}, nil
}

func (m *mockTransactionService) ListTransactions(_ context.Context, userID string, page pagination.PageRequest) (*pagination.Page[models.Transaction], error) {
	if m.listFn != nil {
		return m.listFn(userID, page)
	}
	page.Defaults()
	p := pagination.NewPage[models.Transaction](nil, page, 0)
	return &p, nil
}

type mockGoalService struct {
	addFn        func(userID string, in services.NewGoal) (*models.SavingsGoal, error)
	listFn       func(userID string) ([]models.SavingsGoal, error)
	getFn        func(userID, goalID string) (*models.SavingsGoal, error)
	contributeFn func(userID, goalID string, amount decimal.Decimal) (*models.SavingsGoal, error)
	updateFn     func(userID, goalID string, patch services.GoalPatch) (bool, error)
	deleteFn     func(userID, goalID string) error
}

func (m *mockGoalService) AddGoal(_ context.Context, userID string, in services.NewGoal) (*models.SavingsGoal, error) {
	if m.addFn != nil {
		return m.addFn(userID, in)
	}
	return &models.SavingsGoal{UserID: userID, Name: in.Name, Target: in.Target}, nil
}

func (m *mockGoalService) ListGoals(_ context.Context, userID string) ([]models.SavingsGoal, error) {
	if m.listFn != nil {
		return m.listFn(userID)
	}
	return []models.SavingsGoal{}, nil
}

func (m *mockGoalService) GetGoal(_ context.Context, userID, goalID string) (*models.SavingsGoal, error) {
	if m.getFn != nil {
		return m.getFn(userID, goalID)
	}
	return &models.SavingsGoal{Base: models.Base{ID: goalID}, UserID: userID}, nil
}

func (m *mockGoalService) ContributeToGoal(_ context.Context, userID, goalID string, amount decimal.Decimal) (*models.SavingsGoal, error) {
	if m.contributeFn != nil {
		return m.contributeFn(userID, goalID, amount)
	}
	return &models.SavingsGoal{Base: models.Base{ID: goalID}, UserID: userID, Current: amount}, nil
}

func (m *mockGoalService) UpdateGoal(_ context.Context, userID, goalID string, patch services.GoalPatch) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(userID, goalID, patch)
	}
	return true, nil
}

func (m *mockGoalService) DeleteGoal(_ context.Context, userID, goalID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(userID, goalID)
	}
	return nil
}

type auditEntry struct {
	UserID  string
	Action  string
	Changes map[string]interface{}
}

type mockAuditService struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *mockAuditService) Log(_ context.Context, userID, action, _, _, _ string, changes map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{UserID: userID, Action: action, Changes: changes})
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

// --- test helpers ---

const testUserID = "0190a8c2-7b1e-7c3a-9f4d-2b6e8a1c5d3f"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// newTestEngine mirrors the production chain for error rendering.
func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	return r
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
