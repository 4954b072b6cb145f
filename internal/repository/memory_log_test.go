package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaDesk/internal/domain/models"
	"AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/metrics"
)

func TestMemoryLog_SpentSince(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLog(0)
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.AppendUsage(ctx, &models.UsageRecord{UserID: "u1", CostUSD: 1.5, CreatedAt: day.Add(time.Hour)}))
	require.NoError(t, m.AppendUsage(ctx, &models.UsageRecord{UserID: "u2", CostUSD: 2, CreatedAt: day.Add(2 * time.Hour)}))
	require.NoError(t, m.AppendUsage(ctx, &models.UsageRecord{UserID: "u1", CostUSD: 10, CreatedAt: day.Add(-time.Hour)}))

	all, err := m.SpentSince(ctx, "", day)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, all, 1e-9)

	u1, err := m.SpentSince(ctx, "u1", day)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, u1, 1e-9)
}

func TestMemoryLog_CapsRowsButKeepsEmergencies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLog(2)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AppendAgentLog(ctx, &models.AgentLogEntry{Confidence: i}))
		require.NoError(t, m.AppendEmergency(ctx, &models.EmergencyEvent{ID: string(rune('a' + i))}))
	}

	logs := m.AgentLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, 3, logs[0].Confidence)
	assert.Equal(t, 4, logs[1].Confidence)
	assert.Len(t, m.Emergencies(), 5)

	latest, err := m.LatestEmergency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "e", latest.ID)
}

func TestMemoryLog_RecentPrices(t *testing.T) {
	m := NewMemoryLog(0)
	now := time.Now()
	m.ObservePrice(models.PricePoint{Symbol: "BTC", Price: 1, Timestamp: now.Add(-time.Minute)})
	m.ObservePrice(models.PricePoint{Symbol: "ETH", Price: 2, Timestamp: now})
	m.ObservePrice(models.PricePoint{Symbol: "BTC", Price: 3, Timestamp: now.Add(-2 * time.Minute)})

	got, err := m.RecentPrices(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ETH", got[0].Symbol)

	all, _ := m.RecentPrices(context.Background(), 0)
	require.Len(t, all, 2)
	assert.Equal(t, 3.0, all[1].Price)
}

type failingLog struct{ *MemoryLog }

func (failingLog) AppendUsage(context.Context, *models.UsageRecord) error {
	return errors.New("disk full")
}

func (failingLog) AppendEmergency(context.Context, *models.EmergencyEvent) error {
	return errors.New("disk full")
}

func TestSafeLog_SwallowsFailures(t *testing.T) {
	s := NewSafeLog(failingLog{NewMemoryLog(0)}, logger.NewNop(), metrics.Nop{})

	assert.NotPanics(t, func() {
		s.Usage(context.Background(), &models.UsageRecord{})
	})
	assert.False(t, s.Emergency(context.Background(), &models.EmergencyEvent{}))
}

func TestMemoryKeyStore(t *testing.T) {
	ks := NewMemoryKeyStore()
	ks.Put("u1", models.ProviderOpenAI, "enc")

	v, err := ks.EncryptedKey(context.Background(), "u1", models.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "enc", v)

	v, err = ks.EncryptedKey(context.Background(), "u1", models.ProviderGemini)
	require.NoError(t, err)
	assert.Empty(t, v)
}
