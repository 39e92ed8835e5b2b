// Package mail sends transactional email over SMTP. The only message this
// application sends is the password-reset link.
package mail

import (
	"context"
	"fmt"
	"log"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/user/fittrack-go/config"
)

// Mailer sends email through a configured SMTP relay.
type Mailer struct {
	cfg *config.MailConfig
}

// NewMailer creates a Mailer.
func NewMailer(cfg *config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendPasswordReset delivers a reset link to the given address. With no
// SMTP host configured (local development) it logs and skips sending
// rather than failing, since reset-request success must not depend on
// delivery.
func (m *Mailer) SendPasswordReset(ctx context.Context, toEmail, resetURL string) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		log.Printf("mail config missing, skipping password reset email to %s", toEmail)
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", "Password reset request")
	msg.SetBody("text/html", buildResetBody(resetURL))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)

	// gomail has no context support; honor cancellation around the
	// blocking dial-and-send.
	done := make(chan error, 1)
	go func() { done <- dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildResetBody(resetURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Reset your password</h2>
    <p>Someone requested a password reset for your account. If this was you,
    click the link below. The link expires in one hour.</p>
    <p><a href="%s">Reset password</a></p>
    <p>If you did not request this, you can safely ignore this email.</p>
  </div>
</body>
</html>`, resetURL)
}
