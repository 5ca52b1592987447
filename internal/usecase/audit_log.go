package usecase

import (
	"context"
	"crypto/rand"
	"time"

	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/logging"
	"counselling-payments/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ AuditLog = (*auditLog)(nil)

// AuditLog appends one entry per webhook delivery. It is best effort: a
// failed append is logged and counted but never reported to the caller.
type AuditLog interface {
	Append(ctx context.Context, e *model.PaymentLogEntry)
}

// Sealer encrypts raw payloads at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

const auditWriteTimeout = 5 * time.Second

type auditLog struct {
	logs   repository.PaymentLogRepository
	sealer Sealer // nil stores raw payloads as received
	log    *zerolog.Logger
}

func NewAuditLog(logs repository.PaymentLogRepository, sealer Sealer, logger *zerolog.Logger) *auditLog {
	l := logger.With().Str("component", "AuditLog").Logger()
	return &auditLog{logs: logs, sealer: sealer, log: &l}
}

func (a *auditLog) Append(ctx context.Context, e *model.PaymentLogEntry) {
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	entry := *e
	if a.sealer != nil && entry.RawData != "" {
		sealed, err := a.sealer.Seal(entry.RawData)
		if err != nil {
			a.log.Warn().Err(err).Str("entry_id", entry.ID).Msg("sealing raw payload failed, storing empty payload")
			sealed = ""
		}
		entry.RawData = sealed
	}

	// the delivery may already be answered; the entry should still land
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := a.logs.Append(wctx, &entry); err != nil {
		metrics.IncAuditFailure()
		logging.With(ctx, a.log).Error().Err(err).
			Str("entry_id", entry.ID).
			Str("event_type", entry.EventType).
			Str("outcome", string(entry.Outcome)).
			Msg("audit append failed")
	}
}
