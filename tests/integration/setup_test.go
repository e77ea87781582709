package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"moneyminder/internal/handlers"
	"moneyminder/internal/logger"
	"moneyminder/internal/mailer"
	"moneyminder/internal/metrics"
	"moneyminder/internal/ratelimit"
	"moneyminder/internal/router"
	"moneyminder/internal/security"
	"moneyminder/internal/services"
	"moneyminder/internal/testutil"
	"moneyminder/internal/totp"
	"moneyminder/internal/validator"
)

const (
	adminKey     = "integration-admin-key"
	testPassword = "password123"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Mailbox  *mailbox
	TOTP     *totp.Engine
	Registry *prometheus.Registry
}

// mailbox captures verification emails instead of sending them.
type mailbox struct {
	mu   sync.Mutex
	sent []mailer.Verification
}

func (m *mailbox) SendVerification(_ context.Context, v mailer.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, v)
	return nil
}

// tokenFor returns the token from the latest link mailed to email.
func (m *mailbox) tokenFor(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To != email {
			continue
		}
		link, err := url.Parse(m.sent[i].Link)
		if err != nil {
			t.Fatalf("bad verification link %q: %v", m.sent[i].Link, err)
		}
		return link.Query().Get("token")
	}
	t.Fatalf("no verification email sent to %s", email)
	return ""
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite database.
func setupApp(t *testing.T) *testApp {
	return setupAppWithLimit(t, 1000)
}

// setupAppWithLimit is setupApp with authLimit requests per minute allowed
// on each throttled route.
func setupAppWithLimit(t *testing.T, authLimit int) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	box := &mailbox{}
	engine := totp.NewEngine("MoneyMinder", 1)

	// Services
	userService := services.NewUserService(db)
	authService := services.NewAuthService(services.AuthDependencies{
		Users:           userService,
		Hasher:          security.NewPasswordHasher(bcrypt.MinCost),
		Sessions:        security.NewSessionCodec("integration-secret", time.Hour),
		TOTP:            engine,
		Mailer:          box,
		Metrics:         m,
		AppURL:          "http://localhost:3000",
		VerificationTTL: 24 * time.Hour,
	})
	summaryService := services.NewSummaryService(db)
	transactionService := services.NewTransactionService(db, summaryService, m)
	goalService := services.NewGoalService(db)
	auditService := services.NewAuditService(db)

	cookie := handlers.CookieConfig{MaxAge: time.Hour}
	r := router.New(router.Options{
		Handlers: router.Handlers{
			Auth:         handlers.NewAuthHandler(authService, auditService, cookie),
			Summary:      handlers.NewSummaryHandler(summaryService, auditService),
			Transactions: handlers.NewTransactionHandler(transactionService, auditService),
			Goals:        handlers.NewGoalHandler(goalService, auditService),
			Chat:         handlers.NewChatHandler(nil),
			Admin:        handlers.NewAdminHandler(noopMigrator{}, nil),
		},
		Authenticator: authService,
		Limiter:       ratelimit.NewMemoryLimiter(authLimit, time.Minute),
		Metrics:       m,
		Registry:      registry,
		AdminAPIKey:   adminKey,
		AllowedOrigin: "http://localhost:3000",
	})

	return &testApp{DB: db, Router: r, Mailbox: box, TOTP: engine, Registry: registry}
}

type noopMigrator struct{}

func (noopMigrator) RunMigrations() (uint, error) { return 1, nil }

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// registerUser registers a user and returns its ID.
func (app *testApp) registerUser(t *testing.T, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":"Test User","email":%q,"password":%q}`, email, testPassword)
	rec := app.request("POST", "/api/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["user"].(map[string]interface{})["id"].(string)
}

// verifyEmail follows the mailed verification link.
func (app *testApp) verifyEmail(t *testing.T, email string) {
	t.Helper()
	token := app.Mailbox.tokenFor(t, email)
	rec := app.request("GET", "/api/auth/verify-email?token="+url.QueryEscape(token), "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify failed: %d %s", rec.Code, rec.Body.String())
	}
}

// loginUser logs in and returns the session token.
func (app *testApp) loginUser(t *testing.T, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, testPassword)
	rec := app.request("POST", "/api/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	token, _ := parseJSON(t, rec)["token"].(string)
	if token == "" {
		t.Fatalf("expected session token, got %s", rec.Body.String())
	}
	return token
}

// signUp registers, verifies and logs in a user, returning the session token.
func (app *testApp) signUp(t *testing.T, email string) string {
	t.Helper()
	app.registerUser(t, email)
	app.verifyEmail(t, email)
	return app.loginUser(t, email)
}
