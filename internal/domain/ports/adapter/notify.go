package adapter

import "context"

// SMSSender delivers a transactional SMS.
type SMSSender interface {
	Send(ctx context.Context, phone, templateID, message string) error
}

type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers a single email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}
