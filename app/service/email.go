package service

import (
	"fmt"

	"github.com/linkloop/auth-service/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mailer is a best-effort notification port. Delivery is at-most-once and
// never blocks or fails the transition that triggered it; callers invoke it
// through the service's async runner and only log errors.
type Mailer interface {
	SendVerificationEmail(to, firstName, verifyURL string) error
	SendPasswordResetEmail(to, firstName, resetURL string) error
}

type smtpMailer struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

// NewMailer returns an SMTP-backed mailer, or a log-only one when SMTP is
// not configured (local development).
func NewMailer(cfg config.SMTPConfig) Mailer {
	if !cfg.Enabled() {
		return &logMailer{}
	}
	return &smtpMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (m *smtpMailer) SendVerificationEmail(to, firstName, verifyURL string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Welcome to LinkLoop. Please confirm your email address by clicking the link below:</p><p><a href=%q>Verify my email</a></p><p>The link expires in 24 hours. If you did not sign up, you can ignore this email.</p>",
		firstName, verifyURL,
	)
	return m.send(to, "Verify your email address", body)
}

func (m *smtpMailer) SendPasswordResetEmail(to, firstName, resetURL string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>We received a request to reset your password. Click the link below to choose a new one:</p><p><a href=%q>Reset my password</a></p><p>The link expires in 1 hour. If you did not request this, no action is needed.</p>",
		firstName, resetURL,
	)
	return m.send(to, "Reset your password", body)
}

func (m *smtpMailer) send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return m.dialer.DialAndSend(msg)
}

// logMailer stands in when no SMTP host is configured. It logs the links it
// would have sent, which keeps the verification and reset flows usable in
// development.
type logMailer struct{}

func (m *logMailer) SendVerificationEmail(to, _ string, verifyURL string) error {
	logrus.WithFields(logrus.Fields{"to": to, "url": verifyURL}).Info("SMTP not configured, skipping verification email")
	return nil
}

func (m *logMailer) SendPasswordResetEmail(to, _ string, resetURL string) error {
	logrus.WithFields(logrus.Fields{"to": to, "url": resetURL}).Info("SMTP not configured, skipping password reset email")
	return nil
}
