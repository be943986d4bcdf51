package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/medvault/medvault-api/internal/config"
)

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPService builds the gomail-backed mail sender.
func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendOTP(ctx context.Context, to string, code string) error {
	subject := "Your verification code"
	content := fmt.Sprintf(
		"Your one-time verification code is <b>%s</b>.<br>It expires in 10 minutes.",
		code,
	)
	return s.send(ctx, to, subject, content)
}

func (s *smtpService) SendTemporaryPassword(ctx context.Context, to string, name string, tempPassword string) error {
	subject := "Your account has been created"
	content := fmt.Sprintf(
		"Hello %s,<br><br>Your account is ready. Your temporary password is <b>%s</b>.<br>You will be asked to change it on first login.",
		name, tempPassword,
	)
	return s.send(ctx, to, subject, content)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	return s.send(ctx, to, subject, content)
}

func (s *smtpService) send(ctx context.Context, to, subject, content string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
