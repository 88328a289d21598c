package email

import (
	"context"
	"fmt"
	"html"
)

// Messages builds and sends the transactional emails the auth flows
// produce. It is the concrete implementation of the orchestrator's
// notification hooks.
type Messages struct {
	sender  EmailSender
	appName string
}

// NewMessages wraps a sender with the application identity used in
// subjects and bodies.
func NewMessages(sender EmailSender, appName string) *Messages {
	if appName == "" {
		appName = "Authkit"
	}
	return &Messages{sender: sender, appName: appName}
}

// SendVerificationCode delivers the 6-digit email verification code.
func (m *Messages) SendVerificationCode(ctx context.Context, to, code string) error {
	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:  to,
		Subject: fmt.Sprintf("Verify your %s email", m.appName),
		BodyHTML: fmt.Sprintf(
			"<p>Your %s verification code is:</p><p><strong>%s</strong></p><p>The code expires in 10 minutes.</p>",
			html.EscapeString(m.appName), html.EscapeString(code),
		),
		Tag: "email-verification",
	})
}

// SendPasswordReset delivers the password reset token.
func (m *Messages) SendPasswordReset(ctx context.Context, to, token string) error {
	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:  to,
		Subject: fmt.Sprintf("Reset your %s password", m.appName),
		BodyHTML: fmt.Sprintf(
			"<p>Use this token to reset your %s password:</p><p><strong>%s</strong></p><p>The token expires in 1 hour. If you did not request a reset, ignore this email.</p>",
			html.EscapeString(m.appName), html.EscapeString(token),
		),
		Tag: "password-reset",
	})
}

// SendWelcome greets a user after successful email verification.
func (m *Messages) SendWelcome(ctx context.Context, to, name string) error {
	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:  to,
		Subject: fmt.Sprintf("Welcome to %s", m.appName),
		BodyHTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>your email is verified and your %s account is ready.</p>",
			html.EscapeString(name), html.EscapeString(m.appName),
		),
		Tag: "welcome",
	})
}
