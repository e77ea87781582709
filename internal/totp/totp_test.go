package totp

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base32 of the ASCII seed "12345678901234567890" from RFC 6238 appendix B.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerateCodeMatchesRFCVector(t *testing.T) {
	e := NewEngine("MoneyMinder", 1)

	code, err := e.GenerateCode(rfcSecret, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "287082", code)

	code, err = e.GenerateCode(rfcSecret, time.Unix(1111111109, 0))
	require.NoError(t, err)
	assert.Equal(t, "081804", code)
}

func TestGenerateSecret(t *testing.T) {
	e := NewEngine("MoneyMinder", 1)

	a, err := e.GenerateSecret()
	require.NoError(t, err)
	b, err := e.GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	raw, err := decodeSecret(a)
	require.NoError(t, err)
	assert.Len(t, raw, SecretSize)
}

func TestVerifySkewWindow(t *testing.T) {
	e := NewEngine("MoneyMinder", 1)
	now := time.Date(2024, 3, 1, 12, 0, 15, 0, time.UTC)

	code, err := e.GenerateCode(rfcSecret, now)
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"same step", now, true},
		{"one step later", now.Add(30 * time.Second), true},
		{"one step earlier", now.Add(-30 * time.Second), true},
		{"two steps later", now.Add(60 * time.Second), false},
		{"two steps earlier", now.Add(-60 * time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Verify(code, rfcSecret, tt.at))
		})
	}
}

func TestVerifyWithZeroSkew(t *testing.T) {
	e := NewEngine("MoneyMinder", 0)
	now := time.Date(2024, 3, 1, 12, 0, 15, 0, time.UTC)

	code, err := e.GenerateCode(rfcSecret, now)
	require.NoError(t, err)

	assert.True(t, e.Verify(code, rfcSecret, now))
	assert.False(t, e.Verify(code, rfcSecret, now.Add(30*time.Second)))
}

func TestVerifyRejectsCodeFromOtherSecret(t *testing.T) {
	e := NewEngine("MoneyMinder", 1)
	now := time.Date(2024, 3, 1, 12, 0, 15, 0, time.UTC)

	a, err := e.GenerateSecret()
	require.NoError(t, err)
	code, err := e.GenerateCode(a, now)
	require.NoError(t, err)

	// Regenerate b until none of its codes in the skew window collide with
	// code; a collision is a one in a million coincidence, not a bug.
	var b string
	for b == "" {
		candidate, err := e.GenerateSecret()
		require.NoError(t, err)
		collides := false
		for step := -1; step <= 1; step++ {
			other, err := e.GenerateCode(candidate, now.Add(time.Duration(step)*Period*time.Second))
			require.NoError(t, err)
			collides = collides || other == code
		}
		if !collides {
			b = candidate
		}
	}

	assert.True(t, e.Verify(code, a, now))
	assert.False(t, e.Verify(code, b, now))
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	e := NewEngine("MoneyMinder", 1)
	now := time.Now()

	code, err := e.GenerateCode(rfcSecret, now)
	require.NoError(t, err)

	assert.True(t, e.Verify(" "+code+" ", rfcSecret, now))
	assert.False(t, e.Verify("12345", rfcSecret, now))
	assert.False(t, e.Verify("1234567", rfcSecret, now))
	assert.False(t, e.Verify("", rfcSecret, now))
	assert.False(t, e.Verify(code, "", now))
	assert.False(t, e.Verify(code, "not base32!", now))
}

func TestProvisioningURI(t *testing.T) {
	e := NewEngine("MoneyMinder", 1)

	uri, err := e.ProvisioningURI("ana@x.com", "", rfcSecret)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "otpauth://totp/"))

	u, err := url.Parse(uri)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, rfcSecret, q.Get("secret"))
	assert.Equal(t, "MoneyMinder", q.Get("issuer"))
	assert.Equal(t, "SHA1", q.Get("algorithm"))
	assert.Equal(t, "6", q.Get("digits"))
	assert.Equal(t, "30", q.Get("period"))
	assert.Contains(t, u.Path, "ana@x.com")

	uri, err = e.ProvisioningURI("ana@x.com", "Other", rfcSecret)
	require.NoError(t, err)
	u, err = url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "Other", u.Query().Get("issuer"))
}

func TestProvisioningURIRejectsBadSecret(t *testing.T) {
	e := NewEngine("MoneyMinder", 1)
	_, err := e.ProvisioningURI("ana@x.com", "", "!!!")
	assert.Error(t, err)
}

func TestQRCodeDataURL(t *testing.T) {
	e := NewEngine("MoneyMinder", 1)
	uri, err := e.ProvisioningURI("ana@x.com", "", rfcSecret)
	require.NoError(t, err)

	data, err := e.QRCodeDataURL(uri)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data, "data:image/png;base64,"))
	assert.Greater(t, len(data), len("data:image/png;base64,")+100)
}
