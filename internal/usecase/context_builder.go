package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	"AlphaDesk/pkg/cache"
	applogger "AlphaDesk/pkg/logger"
)

// MarketContextBuilder gathers prices, whale alerts and the last alpha
// concurrently. Prices are required; the other two degrade to empty.
type MarketContextBuilder struct {
	prices     domrepo.PriceFeed
	cache      cache.Service
	priceLimit int
	timeout    time.Duration
	l          *applogger.Logger
	now        func() time.Time
}

func NewMarketContextBuilder(prices domrepo.PriceFeed, c cache.Service, priceLimit int, l *applogger.Logger) *MarketContextBuilder {
	return &MarketContextBuilder{
		prices:     prices,
		cache:      c,
		priceLimit: priceLimit,
		timeout:    10 * time.Second,
		l:          l,
		now:        time.Now,
	}
}

func (b *MarketContextBuilder) Build(ctx context.Context) (*models.AgentContext, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	actx := models.EmptyContext()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		prices, err := b.prices.RecentPrices(gctx, b.priceLimit)
		if err != nil {
			return &errs.ContextUnavailableError{Source: "prices", Err: err}
		}
		actx.Prices = prices
		return nil
	})
	g.Go(func() error {
		whales, ok, err := cache.GetTyped[[]models.WhaleAlert](gctx, b.cache, cache.WhalesKey)
		if err != nil {
			b.l.Warn("whale alerts unavailable", applogger.Error(err))
			return nil
		}
		if ok {
			actx.Whales = whales
		}
		return nil
	})
	g.Go(func() error {
		alpha, ok, err := cache.GetTyped[models.AlphaSnapshot](gctx, b.cache, cache.AlphaKey)
		if err != nil {
			b.l.Warn("last alpha unavailable", applogger.Error(err))
			return nil
		}
		if ok {
			actx.LastAlpha = &alpha
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	actx.BuiltAt = b.now().UTC()
	return actx, nil
}
