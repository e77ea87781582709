// Package mailer delivers account emails. SMTPMailer sends through an SMTP
// relay; LogMailer writes the message to the application log for local
// development where no relay is configured.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
)

const verificationSubject = "Verify Your MoneyMinder Account"

// Verification is the data for an email-verification message.
type Verification struct {
	To        string
	Name      string
	Link      string
	ExpiresIn time.Duration
}

// Mailer sends account emails.
type Mailer interface {
	SendVerification(ctx context.Context, v Verification) error
}

var verificationTmpl = template.Must(template.New("verification").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #10b981;">Welcome to MoneyMinder!</h2>
  <p>Hi {{.Name}},</p>
  <p>Thank you for creating an account with MoneyMinder. To complete your registration, please verify your email address by clicking the button below:</p>
  <p style="text-align: center;">
    <a href="{{.Link}}" style="background-color: #10b981; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Verify Email Address</a>
  </p>
  <p>If the button doesn't work, you can also copy and paste this link into your browser:</p>
  <p>{{.Link}}</p>
  <p>This link will expire in {{.Expiry}}.</p>
  <p>If you didn't create an account, you can safely ignore this email.</p>
  <p>Best regards,<br>The MoneyMinder Team</p>
</div>
`))

func renderVerification(v Verification) (string, error) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, struct {
		Name   string
		Link   string
		Expiry string
	}{v.Name, v.Link, humanDuration(v.ExpiresIn)})
	if err != nil {
		return "", fmt.Errorf("rendering verification email: %w", err)
	}
	return buf.String(), nil
}

// humanDuration renders whole hours as "24 hours", anything shorter in minutes.
func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	}
	m := int(d.Round(time.Minute) / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

// LogMailer logs messages instead of sending them.
type LogMailer struct {
	log *zap.SugaredLogger
}

func NewLogMailer(log *zap.SugaredLogger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendVerification(_ context.Context, v Verification) error {
	m.log.Infow("Verification email (not sent, no SMTP host configured)",
		"to", v.To,
		"link", v.Link,
		"expires_in", v.ExpiresIn.String(),
	)
	return nil
}
