package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/contentforge/billing-api/config"
)

type Service interface {
	SendReceipt(ctx context.Context, to string, plan string, amountCents int64, currency string) error
	SendTrialExpired(ctx context.Context, to string) error
}

// NewService returns the SMTP sender, or a noop when SMTP is disabled.
func NewService(cfg config.SMTPConfig) Service {
	if !cfg.Enabled {
		return noopService{}
	}
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func (s *smtpService) SendReceipt(ctx context.Context, to string, plan string, amountCents int64, currency string) error {
	body := fmt.Sprintf(
		"Your payment of %.2f %s was received. Your subscription is now on the %s plan.",
		float64(amountCents)/100, currency, plan,
	)
	return s.send(to, "Payment received", body)
}

func (s *smtpService) SendTrialExpired(ctx context.Context, to string) error {
	body := "Your trial period has ended. Your account has been moved to the Free plan; subscribe to keep your higher request limit."
	return s.send(to, "Trial expired", body)
}

func (s *smtpService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type noopService struct{}

func (noopService) SendReceipt(ctx context.Context, to string, plan string, amountCents int64, currency string) error {
	return nil
}

func (noopService) SendTrialExpired(ctx context.Context, to string) error {
	return nil
}
