package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaDesk/internal/domain/models"
	"AlphaDesk/pkg/cache"
	"AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/pubsub"
)

func (f *coreFixture) aggregator() *AlphaAggregator {
	a := NewAlphaAggregator(f.cache, f.bus, f.sink, f.metrics, logger.NewNop(), 15*time.Second)
	a.now = f.clock.Now
	return a
}

func (f *coreFixture) seedAgents(t *testing.T, fundamental, sentiment, risk int, riskSignal string) {
	t.Helper()
	f.putOutput(t, AgentFundamentalist, models.AgentOutput{Signal: "bullish", Confidence: fundamental, Provider: models.ProviderOpenAI, Model: "gpt-4o"}, time.Hour)
	f.putOutput(t, AgentSentiment, models.AgentOutput{Signal: "neutral", Confidence: sentiment}, time.Hour)
	f.putOutput(t, AgentRisk, models.AgentOutput{Signal: riskSignal, Confidence: risk}, time.Hour)
}

func TestRunCycle_WeightedConfidence(t *testing.T) {
	f := newCoreFixture(t)
	f.seedAgents(t, 80, 60, 70, "medium")
	a := f.aggregator()

	snap := a.RunCycle(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, 71, snap.Confidence)
	assert.Equal(t, 30, snap.RiskScore)
	assert.Equal(t, 30, snap.Breakdown.Risk.Score)
	assert.Equal(t, 80, snap.Breakdown.Fundamental.Score)
	assert.Equal(t, models.ProviderOpenAI, snap.Breakdown.Fundamental.Provider)
	assert.Equal(t, models.TrendStable, snap.Trend)
	assert.Equal(t, models.RegimeMedium, snap.Regime)
	require.Len(t, snap.History, 1)

	assert.Equal(t, 1, f.bus.count(pubsub.ChannelAlphaUpdates))
	assert.Len(t, f.log.Alphas(), 1)

	cached, ok, err := cache.GetTyped[models.AlphaSnapshot](context.Background(), f.cache, cache.AlphaKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.ID, cached.ID)

	st := a.Status()
	assert.Equal(t, models.AgentIdle, st.Status)
	assert.Equal(t, testDay, st.LastRun)
}

func TestRunCycle_SkipsWhenAnyAgentMissing(t *testing.T) {
	for _, missing := range []string{AgentFundamentalist, AgentSentiment, AgentRisk} {
		t.Run(missing, func(t *testing.T) {
			f := newCoreFixture(t)
			f.seedAgents(t, 80, 60, 70, "low")
			require.NoError(t, f.cache.Delete(context.Background(), cache.AgentKey(missing)))
			a := f.aggregator()

			assert.Nil(t, a.RunCycle(context.Background()))
			assert.Zero(t, f.bus.count(pubsub.ChannelAlphaUpdates))
			assert.Empty(t, f.log.Alphas())
			ok, _ := f.cache.Exists(context.Background(), cache.AlphaKey)
			assert.False(t, ok)
			assert.Equal(t, models.AgentIdle, a.Status().Status)
		})
	}
}

func TestRunCycle_StaleAgentOutputSkips(t *testing.T) {
	f := newCoreFixture(t)
	f.seedAgents(t, 80, 60, 70, "low")
	f.putOutput(t, AgentRisk, models.AgentOutput{Signal: "low", Confidence: 70}, 2*time.Minute)
	a := f.aggregator()

	f.clock.Advance(3 * time.Minute)
	assert.Nil(t, a.RunCycle(context.Background()))
}

func TestRunCycle_TrendAgainstPreviousSnapshot(t *testing.T) {
	f := newCoreFixture(t)
	a := f.aggregator()

	f.seedAgents(t, 50, 50, 50, "low") // 50
	require.NotNil(t, a.RunCycle(context.Background()))

	f.seedAgents(t, 55, 50, 50, "low") // 52: +2 is stable
	assert.Equal(t, models.TrendStable, a.RunCycle(context.Background()).Trend)

	f.seedAgents(t, 70, 50, 50, "low") // 58
	assert.Equal(t, models.TrendIncreasing, a.RunCycle(context.Background()).Trend)

	f.seedAgents(t, 50, 50, 40, "high") // 47
	snap := a.RunCycle(context.Background())
	assert.Equal(t, models.TrendDecreasing, snap.Trend)
	assert.Equal(t, models.RegimeHigh, snap.Regime)
}

func TestRunCycle_PriorSnapshotExpiredMeansStable(t *testing.T) {
	f := newCoreFixture(t)
	a := f.aggregator()
	f.seedAgents(t, 90, 90, 90, "low")
	require.NotNil(t, a.RunCycle(context.Background()))

	f.clock.Advance(31 * time.Second)
	f.seedAgents(t, 10, 10, 10, "critical")
	snap := a.RunCycle(context.Background())
	assert.Equal(t, models.TrendStable, snap.Trend)
	assert.Equal(t, models.RegimeCritical, snap.Regime)
}

func TestRunCycle_HistoryCappedAtTwenty(t *testing.T) {
	f := newCoreFixture(t)
	a := f.aggregator()

	var last *models.AlphaSnapshot
	for i := 0; i < 25; i++ {
		f.seedAgents(t, i, 0, 100, "low")
		f.clock.Advance(time.Second)
		last = a.RunCycle(context.Background())
		require.NotNil(t, last)
		assert.LessOrEqual(t, len(last.History), models.AlphaHistoryLimit)
	}
	require.Len(t, last.History, models.AlphaHistoryLimit)
	assert.Equal(t, testDay.Add(6*time.Second), last.History[0].Timestamp)
	assert.Equal(t, testDay.Add(25*time.Second), last.History[19].Timestamp)
}

func TestRunCycle_PublishFailureSetsError(t *testing.T) {
	f := newCoreFixture(t)
	f.bus.failOn = pubsub.ChannelAlphaUpdates
	f.seedAgents(t, 80, 60, 70, "low")
	a := f.aggregator()

	assert.Nil(t, a.RunCycle(context.Background()))
	assert.Equal(t, models.AgentError, a.Status().Status)
	assert.Empty(t, f.log.Alphas(), "a failed cycle persists nothing")

	f.bus.failOn = ""
	snap := a.RunCycle(context.Background())
	require.NotNil(t, snap)
	assert.Len(t, snap.History, 1, "the failed cycle left no history point")
	assert.Len(t, f.log.Alphas(), 1)
	assert.Equal(t, models.AgentIdle, a.Status().Status)
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	for _, v := range []int{-50, 0, 50, 100, 250} {
		f := newCoreFixture(t)
		f.seedAgents(t, v, v, v, "low")
		snap := f.aggregator().RunCycle(context.Background())
		require.NotNil(t, snap)
		assert.GreaterOrEqual(t, snap.Confidence, 0)
		assert.LessOrEqual(t, snap.Confidence, 100)
	}
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, models.TrendIncreasing, TrendOf(50, 53))
	assert.Equal(t, models.TrendStable, TrendOf(50, 52))
	assert.Equal(t, models.TrendStable, TrendOf(50, 48))
	assert.Equal(t, models.TrendDecreasing, TrendOf(50, 47))
}
