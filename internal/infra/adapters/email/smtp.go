package email

import (
	"context"
	"errors"

	"gopkg.in/gomail.v2"

	"counselling-payments/internal/config"
	"counselling-payments/internal/domain/ports/adapter"
)

var _ adapter.EmailSender = (*SMTPSender)(nil)

// SMTPSender sends multipart mail through an authenticated SMTP relay.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
	send   func(m *gomail.Message) error
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	s := &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
	}
	s.send = func(m *gomail.Message) error { return s.dialer.DialAndSend(m) }
	return s
}

// Send builds the message and dials once per call. gomail has no context
// support, so a cancelled ctx is only honoured before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg adapter.EmailMessage) error {
	if msg.To == "" {
		return errors.New("email: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(buildMessage(s.from, msg))
}

func buildMessage(from string, msg adapter.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m
}
