// Package totp implements RFC 6238 time-based one-time passwords for
// two-factor login: secret generation, otpauth:// provisioning URIs, QR
// images for authenticator apps, and code verification with a clock-skew
// window.
package totp

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the length of one time step.
	Period = 30
	// Digits is the number of digits in a code.
	Digits = otp.DigitsSix
	// SecretSize is the secret length in bytes (160 bits).
	SecretSize = 20

	qrSize = 200
)

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Engine generates and checks TOTP codes. Skew is the number of time steps
// either side of now that are still accepted.
type Engine struct {
	issuer string
	skew   uint
}

// NewEngine returns an engine labelling provisioning URIs with issuer.
func NewEngine(issuer string, skew uint) *Engine {
	return &Engine{issuer: issuer, skew: skew}
}

// Issuer returns the default issuer label.
func (e *Engine) Issuer() string { return e.issuer }

// GenerateSecret returns a fresh base32 (unpadded) secret.
func (e *Engine) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: "secret",
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generating totp secret: %w", err)
	}
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth://totp URI an authenticator app imports.
// An empty issuer falls back to the engine's issuer.
func (e *Engine) ProvisioningURI(account, issuer, secret string) (string, error) {
	if issuer == "" {
		issuer = e.issuer
	}
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		Secret:      raw,
		Digits:      Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("building provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// QRCodeDataURL renders uri as a PNG QR code and returns it as a data URL.
func (e *Engine) QRCodeDataURL(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", fmt.Errorf("parsing provisioning uri: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("rendering qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// GenerateCode returns the code for the time step containing t.
func (e *Engine) GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, e.opts())
}

// Verify reports whether code is valid for secret at t, allowing ±skew steps.
// Malformed input is simply not valid.
func (e *Engine) Verify(code, secret string, t time.Time) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if len(code) != Digits.Length() || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t, e.opts())
	return err == nil && ok
}

func (e *Engine) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      e.skew,
		Digits:    Digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	raw, err := b32NoPadding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding totp secret: %w", err)
	}
	return raw, nil
}
