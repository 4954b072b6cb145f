package usecase

import (
	"context"
	"time"

	domrepo "AlphaDesk/internal/domain/repository"
)

// BudgetGuard checks daily AI spend against a per-user or system-wide limit.
type BudgetGuard struct {
	spend       domrepo.SpendSource
	systemLimit float64
	userLimit   float64
	now         func() time.Time
}

func NewBudgetGuard(spend domrepo.SpendSource, systemLimit, userLimit float64) *BudgetGuard {
	return &BudgetGuard{spend: spend, systemLimit: systemLimit, userLimit: userLimit, now: time.Now}
}

type BudgetStatus struct {
	Spent    float64
	Limit    float64
	Exceeded bool
}

func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Check reports whether spending estimate more today would exceed the limit.
// A limit of zero disables the check.
func (b *BudgetGuard) Check(ctx context.Context, userID string, estimate float64) (BudgetStatus, error) {
	limit := b.systemLimit
	if userID != "" {
		limit = b.userLimit
	}
	if limit <= 0 {
		return BudgetStatus{}, nil
	}

	spent, err := b.spend.SpentSince(ctx, userID, startOfDayUTC(b.now()))
	if err != nil {
		return BudgetStatus{Limit: limit}, err
	}
	return BudgetStatus{Spent: spent, Limit: limit, Exceeded: spent+estimate > limit}, nil
}

// DailySpend is today's system-wide spend.
func (b *BudgetGuard) DailySpend(ctx context.Context) (float64, error) {
	return b.spend.SpentSince(ctx, "", startOfDayUTC(b.now()))
}
