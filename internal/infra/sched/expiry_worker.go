package sched

import (
	"context"
	"time"

	"counselling-payments/internal/usecase"

	"github.com/rs/zerolog"
)

// ExpiryWorker periodically demotes users whose premium plan has expired.
type ExpiryWorker struct {
	interval  time.Duration
	premiumUC usecase.PremiumUseCase
	log       *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, premiumUC usecase.PremiumUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval:  interval,
		premiumUC: premiumUC,
		log:       &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick is one sweep. The premium_expired_total counter is incremented by the
// reconcile use case, so only logging happens here.
func (w *ExpiryWorker) tick(ctx context.Context) {
	n, err := w.premiumUC.ExpireDue(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("expiry worker error")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expired premium plans demoted")
	}
}
