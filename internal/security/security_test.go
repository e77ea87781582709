package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", hash)

	assert.True(t, h.Verify("pw123456", hash))
	assert.False(t, h.Verify("pw1234567", hash))
	assert.False(t, h.Verify("pw123456", "not-a-bcrypt-hash"))
}

func TestPasswordHasherSaltsEveryHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same-password", a))
	assert.True(t, h.Verify("same-password", b))
}

func TestPasswordHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(1).cost)
	assert.Equal(t, bcrypt.MaxCost, NewPasswordHasher(99).cost)
}

func TestSessionCodecRoundTrip(t *testing.T) {
	codec := NewSessionCodec("test-secret", time.Hour)

	token, expiresAt, err := codec.Issue("user-1", "ana@x.com", "Ana")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ana@x.com", claims.Email)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, "user-1", claims.Subject)
	require.NotNil(t, claims.IssuedAt)
}

func TestSessionCodecRejectsForeignSignature(t *testing.T) {
	issuer := NewSessionCodec("secret-a", time.Hour)
	verifier := NewSessionCodec("secret-b", time.Hour)

	token, _, err := issuer.Issue("user-1", "ana@x.com", "Ana")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionCodecRejectsTampering(t *testing.T) {
	codec := NewSessionCodec("test-secret", time.Hour)
	token, _, err := codec.Issue("user-1", "ana@x.com", "Ana")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = codec.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = codec.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionCodecExpiry(t *testing.T) {
	codec := NewSessionCodec("test-secret", time.Minute)
	issuedAt := time.Now().Add(-2 * time.Minute)
	codec.now = func() time.Time { return issuedAt }

	token, _, err := codec.Issue("user-1", "ana@x.com", "Ana")
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSessionCodecRejectsNoneAlgorithm(t *testing.T) {
	codec := NewSessionCodec("test-secret", time.Hour)
	claims := &SessionClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken()
	require.NoError(t, err)
	b, err := GenerateOpaqueToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	for _, r := range a {
		assert.True(t, strings.ContainsRune("0123456789abcdef", r), "unexpected rune %q", r)
	}
}
