package infra

import (
	"fmt"
	"net/smtp"

	"github.com/VCalixtoR/gestaomt-back/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends rendered reports through the configured SMTP relay.
type Mailer struct {
	from    string
	addr    string
	auth    smtp.Auth
	breaker *CircuitBreaker
}

func NewMailer(cfg *config.Config, breaker *CircuitBreaker) *Mailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &Mailer{
		from:    cfg.SMTPUser,
		addr:    fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth:    auth,
		breaker: breaker,
	}
}

// Breaker exposes the breaker state for the health endpoint.
func (m *Mailer) Breaker() *CircuitBreaker { return m.breaker }

// SendReport mails one PDF attachment. Calls fail fast while the breaker is open.
func (m *Mailer) SendReport(to, subject, body, pdfPath string) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)
	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach report: %w", err)
		}
	}
	send := func() error { return e.Send(m.addr, m.auth) }
	if m.breaker == nil {
		return send()
	}
	return m.breaker.Execute(send)
}
