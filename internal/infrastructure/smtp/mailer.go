package smtp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-marketplace-api/internal/config"
	mail "gopkg.in/mail.v2"
)

// Mailer sends plain-text emails through an SMTP relay.
type Mailer struct {
	dialer *mail.Dialer
	from   string
}

func NewMailer(cfg *config.Config) *Mailer {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	if cfg.DeliveryTimeout > 0 {
		d.Timeout = cfg.DeliveryTimeout
	}
	return &Mailer{dialer: d, from: cfg.SMTPFrom}
}

// SendEmail delivers body to a single recipient. It returns early with
// ctx.Err() if ctx is done before the relay accepts the message.
func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := newMessage(m.from, to, subject, body)

	d := *m.dialer
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d.Timeout || d.Timeout == 0 {
			d.Timeout = left
		}
	}

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newMessage(from, to, subject, body string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}
