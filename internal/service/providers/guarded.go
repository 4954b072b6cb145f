package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	applogger "AlphaDesk/pkg/logger"
)

type GuardOptions struct {
	RatePerSecond float64
	Burst         int
	MaxFailures   uint32
	OpenTimeout   time.Duration
}

// Guarded wraps an adapter with a rate limiter and a circuit breaker.
// Only retryable failures count against the circuit: a bad request says
// nothing about provider health.
type Guarded struct {
	provider models.ProviderID
	inner    domrepo.ProviderAdapter
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
}

func NewGuarded(provider models.ProviderID, inner domrepo.ProviderAdapter, opts GuardOptions, l *applogger.Logger) *Guarded {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:    string(provider),
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errs.IsNonRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("provider circuit state changed",
				applogger.String("provider", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}

	return &Guarded{
		provider: provider,
		inner:    inner,
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *Guarded) Complete(ctx context.Context, req models.AIRequest, model, apiKey string) (*models.AIResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &errs.ProviderError{Provider: string(g.provider), Code: errs.CodeRateLimited, Message: "local rate limit wait aborted", Retryable: true, Err: err}
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Complete(ctx, req, model, apiKey)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &errs.ProviderError{Provider: string(g.provider), Code: errs.CodeCircuitOpen, Message: fmt.Sprintf("circuit %s", g.breaker.State()), Retryable: true, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.(*models.AIResponse), nil
}

// State reports the breaker state for status pages and tests.
func (g *Guarded) State() string {
	return g.breaker.State().String()
}
