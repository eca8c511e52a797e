package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Mailer sends account lifecycle emails.
type Mailer interface {
	// SendVerificationEmail mails an email verification link built from the token.
	SendVerificationEmail(ctx context.Context, to, token string) error

	// SendPasswordResetEmail mails a password reset link built from the token.
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is the public URL links in outgoing mail point at.
	BaseURL string
}

// SMTPMailer sends email over SMTP.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
}

// NewSMTPMailer creates an SMTP-backed mailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		baseURL: cfg.BaseURL,
	}
}

// SendVerificationEmail mails an email verification link.
func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/verify-email/%s", m.baseURL, token)

	body := fmt.Sprintf(`
		<h2>Verify your email address</h2>
		<p>Thanks for signing up. Click the link below to verify your email address:</p>
		<p><a href="%s">%s</a></p>
		<p>The link expires in one hour. If you did not create an account, you can ignore this email.</p>
	`, link, link)

	return m.send(ctx, to, "Verify your email address", body)
}

// SendPasswordResetEmail mails a password reset link.
func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password/%s", m.baseURL, token)

	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p>Click the link below to choose a new password:</p>
		<p><a href="%s">%s</a></p>
		<p>The link expires in one hour. If you did not request this change, you can ignore this email.</p>
	`, link, link)

	return m.send(ctx, to, "Password reset request", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	return nil
}

// LogMailer writes outgoing mail to the log instead of sending it. Used in
// development and tests where no SMTP server is available.
type LogMailer struct {
	logger  *slog.Logger
	baseURL string
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(baseURL string, logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger, baseURL: baseURL}
}

// SendVerificationEmail logs the verification link.
func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	m.logger.InfoContext(ctx, "verification email (log mode)",
		slog.String("to", to),
		slog.String("link", fmt.Sprintf("%s/verify-email/%s", m.baseURL, token)),
	)
	return nil
}

// SendPasswordResetEmail logs the reset link.
func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	m.logger.InfoContext(ctx, "password reset email (log mode)",
		slog.String("to", to),
		slog.String("link", fmt.Sprintf("%s/reset-password/%s", m.baseURL, token)),
	)
	return nil
}
