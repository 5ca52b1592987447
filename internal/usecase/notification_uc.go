package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/adapter"
	"counselling-payments/internal/infra/logging"
	"counselling-payments/internal/infra/metrics"
	"counselling-payments/internal/infra/worker"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase sends payment side effects after a committed
// reconciliation. Dispatch never blocks on a provider and never fails the
// caller.
type NotificationUseCase interface {
	Dispatch(ctx context.Context, user *model.User, order *model.Order)
}

// TaskSubmitter is satisfied by *worker.Pool.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type NotificationOptions struct {
	SMSTemplateID string
	Timeout       time.Duration // per dispatched task
	Dev           bool          // log PII unredacted
}

type notificationUC struct {
	pool  TaskSubmitter
	sms   adapter.SMSSender   // optional
	email adapter.EmailSender // optional
	opts  NotificationOptions
	log   *zerolog.Logger
}

func NewNotificationUseCase(pool TaskSubmitter, sms adapter.SMSSender, email adapter.EmailSender, opts NotificationOptions, logger *zerolog.Logger) *notificationUC {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{pool: pool, sms: sms, email: email, opts: opts, log: &l}
}

func (n *notificationUC) Dispatch(ctx context.Context, user *model.User, order *model.Order) {
	if user == nil || order == nil {
		return
	}
	u := user.Clone()
	o := *order
	traceID := logging.TraceIDFrom(ctx)

	err := n.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
		defer cancel()
		if traceID != "" {
			ctx = logging.WithTraceID(ctx, traceID)
		}
		return n.send(ctx, u, &o)
	})
	if err != nil {
		metrics.IncNotification("sms", "dropped")
		metrics.IncNotification("email", "dropped")
		logging.With(ctx, n.log).Warn().Err(err).Str("order_id", o.OrderID).Msg("notification not queued")
	}
}

// send runs inside the worker pool. Each channel is independent; the joined
// error only feeds the pool's task metrics.
func (n *notificationUC) send(ctx context.Context, u *model.User, o *model.Order) error {
	log := logging.With(ctx, n.log).With().Str("user_id", u.ID).Str("order_id", o.OrderID).Logger()
	var errs []error

	switch {
	case n.sms == nil:
		metrics.IncNotification("sms", "skipped")
	case u.Phone == "":
		metrics.IncNotification("sms", "skipped")
		log.Debug().Msg("user has no phone, skipping sms")
	default:
		if err := n.sms.Send(ctx, u.Phone, n.opts.SMSTemplateID, successSMS(o)); err != nil {
			metrics.IncNotification("sms", "error")
			log.Error().Err(err).Str("phone", logging.Redact(u.Phone, n.opts.Dev)).Msg("payment sms failed")
			errs = append(errs, fmt.Errorf("sms: %w", err))
		} else {
			metrics.IncNotification("sms", "sent")
		}
	}

	switch {
	case n.email == nil:
		metrics.IncNotification("email", "skipped")
	case u.Email == "":
		metrics.IncNotification("email", "skipped")
		log.Debug().Msg("user has no email, skipping receipt")
	default:
		text, html, err := renderReceipt(u, o)
		if err == nil {
			err = n.email.Send(ctx, adapter.EmailMessage{To: u.Email, Subject: receiptSubject, Text: text, HTML: html})
		}
		if err != nil {
			metrics.IncNotification("email", "error")
			log.Error().Err(err).Str("email", logging.Redact(u.Email, n.opts.Dev)).Msg("payment receipt failed")
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			metrics.IncNotification("email", "sent")
		}
	}
	return errors.Join(errs...)
}
