package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/repository"
)

// Totals is the admin dashboard snapshot.
type Totals struct {
	Users           int
	Conversions     int
	PaidConversions int
	Payments        map[model.PaymentStatus]int
}

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (*Totals, error)
	// Revenue returns completed payment sums in USD cents for the trailing
	// 7 and 30 days.
	Revenue(ctx context.Context) (week int64, month int64, err error)
}

type statsUC struct {
	users       repository.UserRepository
	conversions repository.ConversionRepository
	payments    repository.PaymentRepository
	log         *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, conversions repository.ConversionRepository, payments repository.PaymentRepository, logger *zerolog.Logger) StatsUseCase {
	return &statsUC{users: users, conversions: conversions, payments: payments, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (*Totals, error) {
	users, err := s.users.Count(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	convs, err := s.conversions.Count(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	paid, err := s.conversions.CountPaid(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.payments.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	return &Totals{Users: users, Conversions: convs, PaidConversions: paid, Payments: byStatus}, nil
}

func (s *statsUC) Revenue(ctx context.Context) (int64, int64, error) {
	now := time.Now()
	week, err := s.payments.SumCompletedUSDCentsSince(ctx, repository.NoTX, now.AddDate(0, 0, -7))
	if err != nil {
		return 0, 0, err
	}
	month, err := s.payments.SumCompletedUSDCentsSince(ctx, repository.NoTX, now.AddDate(0, 0, -30))
	if err != nil {
		return 0, 0, err
	}
	return week, month, nil
}
