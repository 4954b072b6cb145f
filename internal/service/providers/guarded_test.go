package providers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
	"AlphaDesk/pkg/logger"
)

type countingAdapter struct {
	calls atomic.Int32
	err   error
}

func (a *countingAdapter) Complete(context.Context, models.AIRequest, string, string) (*models.AIResponse, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return &models.AIResponse{Content: "ok"}, nil
}

func TestGuarded_OpensAfterConsecutiveRetryableFailures(t *testing.T) {
	inner := &countingAdapter{err: &errs.ProviderError{Provider: "openai", Code: errs.CodeServerError, Retryable: true}}
	g := NewGuarded(models.ProviderOpenAI, inner, GuardOptions{MaxFailures: 3, OpenTimeout: time.Minute}, logger.NewNop())

	for i := 0; i < 3; i++ {
		_, err := g.Complete(context.Background(), models.AIRequest{}, "gpt-4o", "k")
		assert.Equal(t, errs.CodeServerError, errs.CodeOf(err))
	}
	assert.Equal(t, "open", g.State())

	_, err := g.Complete(context.Background(), models.AIRequest{}, "gpt-4o", "k")
	assert.Equal(t, errs.CodeCircuitOpen, errs.CodeOf(err))
	assert.False(t, errs.IsNonRetryable(err))
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestGuarded_NonRetryableFailuresDoNotTrip(t *testing.T) {
	inner := &countingAdapter{err: &errs.ProviderError{Provider: "openai", Code: errs.CodeBadRequest, Retryable: false}}
	g := NewGuarded(models.ProviderOpenAI, inner, GuardOptions{MaxFailures: 2}, logger.NewNop())

	for i := 0; i < 5; i++ {
		_, err := g.Complete(context.Background(), models.AIRequest{}, "gpt-4o", "k")
		assert.True(t, errs.IsNonRetryable(err))
	}
	assert.Equal(t, "closed", g.State())
}

func TestGuarded_PassesThroughSuccess(t *testing.T) {
	g := NewGuarded(models.ProviderOpenAI, &countingAdapter{}, GuardOptions{RatePerSecond: 100, Burst: 1}, logger.NewNop())
	resp, err := g.Complete(context.Background(), models.AIRequest{}, "gpt-4o", "k")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestGuarded_RateLimitWaitHonoursContext(t *testing.T) {
	g := NewGuarded(models.ProviderOpenAI, &countingAdapter{}, GuardOptions{RatePerSecond: 0.001, Burst: 1}, logger.NewNop())
	_, err := g.Complete(context.Background(), models.AIRequest{}, "gpt-4o", "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Complete(ctx, models.AIRequest{}, "gpt-4o", "k")
	assert.Equal(t, errs.CodeRateLimited, errs.CodeOf(err))
}
