package usecase

import (
	"context"
	"errors"
	"time"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PremiumUseCase = (*premiumUC)(nil)

type PremiumUseCase interface {
	// CheckStatus compares the plan expiry against the wall clock and
	// demotes an expired user before answering.
	CheckStatus(ctx context.Context, userID string) (*PremiumStatus, error)
	CheckStatusByPhone(ctx context.Context, phone string) (*PremiumStatus, error)
	// ExpireDue demotes every user whose plan expired before now and
	// returns how many were demoted.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type PremiumStatus struct {
	UserID    string             `json:"userId"`
	IsPremium bool               `json:"isPremium"`
	Plan      *model.PremiumPlan `json:"premiumPlan,omitempty"`
	DaysLeft  int                `json:"daysLeft"`
}

const expireBatch = 100

type premiumUC struct {
	users     repository.UserRepository
	reconcile ReconcileUseCase
	log       *zerolog.Logger
}

func NewPremiumUseCase(users repository.UserRepository, reconcile ReconcileUseCase, logger *zerolog.Logger) *premiumUC {
	l := logger.With().Str("component", "PremiumUC").Logger()
	return &premiumUC{users: users, reconcile: reconcile, log: &l}
}

func (p *premiumUC) CheckStatus(ctx context.Context, userID string) (*PremiumStatus, error) {
	u, err := p.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.status(ctx, u, time.Now())
}

func (p *premiumUC) CheckStatusByPhone(ctx context.Context, phone string) (*PremiumStatus, error) {
	if phone == "" {
		return nil, domain.ErrInvalidArgument
	}
	u, err := p.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return p.status(ctx, u, time.Now())
}

func (p *premiumUC) status(ctx context.Context, u *model.User, now time.Time) (*PremiumStatus, error) {
	if u == nil {
		return nil, domain.ErrNotFound
	}
	if u.PremiumExpired(now) {
		res, err := p.reconcile.ExpirePremium(ctx, u.ID, now)
		if err != nil {
			return nil, err
		}
		if res.User != nil {
			u = res.User
		} else {
			u.IsPremium = false
		}
	}

	st := &PremiumStatus{UserID: u.ID, IsPremium: u.IsPremium, Plan: u.PremiumPlan}
	if u.IsPremium && u.PremiumPlan != nil {
		st.DaysLeft = int(u.PremiumPlan.ExpiryDate.Sub(now).Hours() / 24)
	}
	return st, nil
}

func (p *premiumUC) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	users, err := p.users.ListPremiumExpiredBefore(ctx, now, expireBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, u := range users {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := p.reconcile.ExpirePremium(ctx, u.ID, now)
		if err != nil {
			p.log.Warn().Err(err).Str("user_id", u.ID).Msg("premium expiry failed")
			errs = append(errs, err)
			continue
		}
		if res.Changed {
			n++
		}
	}
	return n, errors.Join(errs...)
}
