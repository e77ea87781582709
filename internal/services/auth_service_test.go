package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"moneyminder/internal/mailer"
	"moneyminder/internal/security"
	"moneyminder/internal/testutil"
	"moneyminder/internal/totp"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Verification
	err  error
}

func (m *fakeMailer) SendVerification(_ context.Context, v mailer.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, v)
	return nil
}

// lastToken extracts the token query parameter of the most recent link.
func (m *fakeMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no verification email sent")
	}
	link, err := url.Parse(m.sent[len(m.sent)-1].Link)
	if err != nil {
		t.Fatalf("bad verification link: %v", err)
	}
	return link.Query().Get("token")
}

var testTOTP = totp.NewEngine("MoneyMinder", 1)

func newTestAuthService(db *gorm.DB, m *fakeMailer) *authService {
	return newAuthService(AuthDependencies{
		Users:           NewUserService(db),
		Hasher:          security.NewPasswordHasher(bcrypt.MinCost),
		Sessions:        security.NewSessionCodec("test-secret", time.Hour),
		TOTP:            testTOTP,
		Mailer:          m,
		AppURL:          "http://localhost:3000/",
		VerificationTTL: 24 * time.Hour,
	})
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := testTOTP.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("failed to generate code: %v", err)
	}
	return code
}

// foreignCode returns a well-formed code generated from a different secret
// that is not accepted for secret anywhere in the skew window.
func foreignCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	valid := map[string]bool{}
	for step := -2; step <= 2; step++ {
		code, err := testTOTP.GenerateCode(secret, now.Add(time.Duration(step)*totp.Period*time.Second))
		if err != nil {
			t.Fatalf("failed to generate code: %v", err)
		}
		valid[code] = true
	}
	for {
		other, err := testTOTP.GenerateSecret()
		if err != nil {
			t.Fatalf("failed to generate secret: %v", err)
		}
		code, err := testTOTP.GenerateCode(other, now)
		if err != nil {
			t.Fatalf("failed to generate code: %v", err)
		}
		if !valid[code] {
			return code
		}
	}
}

func TestRegisterVerifyLogin(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	m := &fakeMailer{}
	svc := newTestAuthService(db, m)

	user, err := svc.Register(ctx, "Ana", "ana@x.com", "s3cretpass", "")
	testutil.AssertNoError(t, err)
	if user.EmailVerified {
		t.Fatal("registered user must start unverified")
	}
	if user.PasswordHash == "s3cretpass" {
		t.Fatal("password must be stored hashed")
	}

	if len(m.sent) != 1 {
		t.Fatalf("expected 1 verification email, got %d", len(m.sent))
	}
	if m.sent[0].To != "ana@x.com" || m.sent[0].ExpiresIn != 24*time.Hour {
		t.Errorf("unexpected verification email: %+v", m.sent[0])
	}
	token := m.lastToken(t)
	if len(token) != 64 {
		t.Errorf("expected 64-char token, got %q", token)
	}

	_, err = svc.Login(ctx, "ana@x.com", "s3cretpass")
	testutil.AssertAppError(t, err, "EMAIL_NOT_VERIFIED")

	verified, err := svc.VerifyEmail(ctx, token)
	testutil.AssertNoError(t, err)
	if !verified.EmailVerified {
		t.Error("expected verified user")
	}

	_, err = svc.VerifyEmail(ctx, token)
	testutil.AssertAppError(t, err, "INVALID_TOKEN")

	result, err := svc.Login(ctx, "ANA@x.com", "s3cretpass")
	testutil.AssertNoError(t, err)
	if result.RequiresTwoFactor || result.Token == "" {
		t.Fatalf("expected a session token, got %+v", result)
	}
	if result.User.LastLoginAt == nil {
		t.Error("expected last login recorded")
	}

	claims, err := svc.Authenticate(ctx, result.Token)
	testutil.AssertNoError(t, err)
	if claims.UserID != user.ID || claims.Email != "ana@x.com" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid_input", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAuthService(db, &fakeMailer{})

		_, err := svc.Register(ctx, "Ana", "ana@x.com", "short", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		_, err = svc.Register(ctx, "", "ana@x.com", "longenough", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("duplicate_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAuthService(db, &fakeMailer{})
		testutil.CreateTestUserWithEmail(t, db, "ana@x.com")

		_, err := svc.Register(ctx, "Ana", "ana@x.com", "longenough", "")
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("mail_failure_still_registers", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAuthService(db, &fakeMailer{err: errors.New("smtp down")})

		user, err := svc.Register(ctx, "Ana", "ana@x.com", "longenough", "EUR")
		testutil.AssertNoError(t, err)
		if user.ID == "" {
			t.Error("expected the user to be stored")
		}
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown_token", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAuthService(db, &fakeMailer{})

		_, err := svc.VerifyEmail(ctx, "nope")
		testutil.AssertAppError(t, err, "INVALID_TOKEN")
	})

	t.Run("expired_token", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestAuthService(db, &fakeMailer{})
		user := testutil.CreateUnverifiedUser(t, db, "stale", time.Now().Add(-time.Minute))

		_, err := svc.VerifyEmail(ctx, "stale")
		testutil.AssertAppError(t, err, "EXPIRED_TOKEN")

		reloaded, err := svc.GetProfile(ctx, user.ID)
		testutil.AssertNoError(t, err)
		if reloaded.EmailVerified {
			t.Error("expired token must not verify the user")
		}
	})
}

func TestResendVerification(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	m := &fakeMailer{}
	svc := newTestAuthService(db, m)

	_, err := svc.Register(ctx, "Ana", "ana@x.com", "longenough", "")
	testutil.AssertNoError(t, err)
	first := m.lastToken(t)

	testutil.AssertNoError(t, svc.ResendVerification(ctx, "ana@x.com"))
	second := m.lastToken(t)
	if first == second {
		t.Fatal("expected a fresh token")
	}

	_, err = svc.VerifyEmail(ctx, first)
	testutil.AssertAppError(t, err, "INVALID_TOKEN")
	_, err = svc.VerifyEmail(ctx, second)
	testutil.AssertNoError(t, err)

	err = svc.ResendVerification(ctx, "ana@x.com")
	testutil.AssertAppError(t, err, "INVALID_INPUT")
	err = svc.ResendVerification(ctx, "ghost@x.com")
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestAuthService(db, &fakeMailer{})
	user := testutil.CreateTestUser(t, db)

	_, err := svc.Login(ctx, "ghost@x.com", testutil.TestPassword)
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")

	_, err = svc.Login(ctx, user.Email, "wrong-password")
	testutil.AssertAppError(t, err, "INVALID_PASSWORD")

	result, err := svc.Login(ctx, user.Email, testutil.TestPassword)
	testutil.AssertNoError(t, err)
	if result.Token == "" {
		t.Error("expected a token")
	}
}

func TestTwoFactorFlow(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestAuthService(db, &fakeMailer{})
	user := testutil.CreateTestUser(t, db)

	err := svc.ActivateTwoFactor(ctx, user.ID, "123456")
	testutil.AssertAppError(t, err, "TWO_FACTOR_NOT_SETUP")

	setup, err := svc.SetupTwoFactor(ctx, user.ID)
	testutil.AssertNoError(t, err)
	if setup.Secret == "" || setup.OTPAuthURL == "" || setup.QRCode == "" {
		t.Fatalf("incomplete setup %+v", setup)
	}

	// Pending setup leaves login single-factor.
	pending, err := svc.Login(ctx, user.Email, testutil.TestPassword)
	testutil.AssertNoError(t, err)
	if pending.RequiresTwoFactor {
		t.Fatal("two-factor must stay off until activated")
	}

	err = svc.ActivateTwoFactor(ctx, user.ID, foreignCode(t, setup.Secret))
	testutil.AssertAppError(t, err, "INVALID_CODE")
	testutil.AssertNoError(t, svc.ActivateTwoFactor(ctx, user.ID, currentCode(t, setup.Secret)))

	_, err = svc.SetupTwoFactor(ctx, user.ID)
	testutil.AssertAppError(t, err, "TWO_FACTOR_ALREADY_ENABLED")

	challenge, err := svc.Login(ctx, user.Email, testutil.TestPassword)
	testutil.AssertNoError(t, err)
	if !challenge.RequiresTwoFactor || challenge.Token != "" {
		t.Fatalf("expected a pending two-factor login, got %+v", challenge)
	}

	_, err = svc.VerifyTwoFactorLogin(ctx, user.ID, "12345")
	testutil.AssertAppError(t, err, "INVALID_CODE")
	_, err = svc.VerifyTwoFactorLogin(ctx, user.ID, foreignCode(t, setup.Secret))
	testutil.AssertAppError(t, err, "INVALID_CODE")

	result, err := svc.VerifyTwoFactorLogin(ctx, user.ID, currentCode(t, setup.Secret))
	testutil.AssertNoError(t, err)
	if result.Token == "" {
		t.Fatal("expected a session token after the second factor")
	}

	err = svc.DisableTwoFactor(ctx, user.ID, foreignCode(t, setup.Secret))
	testutil.AssertAppError(t, err, "INVALID_CODE")
	testutil.AssertNoError(t, svc.DisableTwoFactor(ctx, user.ID, currentCode(t, setup.Secret)))

	err = svc.DisableTwoFactor(ctx, user.ID, currentCode(t, setup.Secret))
	testutil.AssertAppError(t, err, "TWO_FACTOR_NOT_ENABLED")

	_, err = svc.VerifyTwoFactorLogin(ctx, user.ID, currentCode(t, setup.Secret))
	testutil.AssertAppError(t, err, "INVALID_CODE")
}

func TestVerifyTwoFactorLoginUnverifiedEmail(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestAuthService(db, &fakeMailer{})
	user := testutil.CreateUnverifiedUser(t, db, "tok", time.Now().Add(time.Hour))
	secret, err := testTOTP.GenerateSecret()
	testutil.AssertNoError(t, err)
	testutil.EnableTestTwoFactor(t, db, user, secret)

	_, err = svc.VerifyTwoFactorLogin(ctx, user.ID, currentCode(t, secret))
	testutil.AssertAppError(t, err, "EMAIL_NOT_VERIFIED")
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestAuthService(db, &fakeMailer{})

	_, err := svc.Authenticate(ctx, "")
	testutil.AssertAppError(t, err, "UNAUTHORIZED")

	_, err = svc.Authenticate(ctx, "not-a-jwt")
	testutil.AssertAppError(t, err, "INVALID_TOKEN")

	expired := security.NewSessionCodec("test-secret", -time.Minute)
	token, _, err := expired.Issue("u1", "a@x.com", "A")
	testutil.AssertNoError(t, err)
	_, err = svc.Authenticate(ctx, token)
	testutil.AssertAppError(t, err, "EXPIRED_TOKEN")
}
