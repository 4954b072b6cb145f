package repository

import (
	"context"
	"time"

	"AlphaDesk/internal/domain/models"
)

// ProviderAdapter performs one completion against one AI provider.
// Failures should be *errs.ProviderError.
type ProviderAdapter interface {
	Complete(ctx context.Context, req models.AIRequest, model, apiKey string) (*models.AIResponse, error)
}

// PersistentLog is the durable append-only sink for the core's records.
type PersistentLog interface {
	AppendUsage(ctx context.Context, r *models.UsageRecord) error
	AppendFallback(ctx context.Context, e *models.FallbackEvent) error
	AppendAgentLog(ctx context.Context, e *models.AgentLogEntry) error
	AppendAlpha(ctx context.Context, s *models.AlphaSnapshot) error
	AppendEmergency(ctx context.Context, e *models.EmergencyEvent) error
	LatestEmergency(ctx context.Context) (*models.EmergencyEvent, error)
	Close() error
}

// SpendSource reports AI spend since a point in time. Empty userID means system-wide.
type SpendSource interface {
	SpentSince(ctx context.Context, userID string, since time.Time) (float64, error)
}

// TradeCounter counts currently open trades.
type TradeCounter interface {
	CountOpenTrades(ctx context.Context) (int, error)
}

// PriceFeed returns the most recent prices known to the platform.
type PriceFeed interface {
	RecentPrices(ctx context.Context, limit int) ([]models.PricePoint, error)
}

// KeyStore returns a user's stored (encrypted) provider key. Empty means none.
type KeyStore interface {
	EncryptedKey(ctx context.Context, userID string, provider models.ProviderID) (string, error)
}

type Metrics interface {
	RecordTick(agent string, seconds float64, ok bool)
	RecordTickSkipped(agent, reason string)
	RecordAttempt(provider, model string, ok bool)
	RecordFallback(from, to string)
	RecordCost(provider string, usd float64)
	RecordAlpha(confidence int)
	RecordEmergencyStop()
	RecordError(kind string)
}
