package mail

import (
	"context"

	"gopkg.in/gomail.v2"
)

// Dispatcher delivers a single message. Implementations must respect ctx so
// slow mail infrastructure never blocks the caller past its deadline.
type Dispatcher interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// SMTP is a gomail-backed Dispatcher.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers the message, abandoning the wait when ctx expires. The SMTP
// session may still complete in the background; the caller just stops
// waiting for it.
func (s *SMTP) Send(ctx context.Context, recipient, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
