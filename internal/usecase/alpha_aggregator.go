package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	"AlphaDesk/internal/repository"
	"AlphaDesk/pkg/cache"
	applogger "AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/pubsub"
	"AlphaDesk/pkg/scheduler"
)

const (
	AggregatorTask = "alpha-aggregator"
	alphaTTL       = 30 * time.Second
	trendThreshold = 2

	weightFundamental = 0.40
	weightSentiment   = 0.30
	weightRisk        = 0.30
)

// Names of the agents whose cached outputs feed the aggregate.
const (
	AgentFundamentalist = "Fundamentalist"
	AgentSentiment      = "Sentiment"
	AgentRisk           = "Risk"
)

type AggregatorStatus struct {
	Status  models.AgentState `json:"status"`
	LastRun time.Time         `json:"lastRun"`
}

// AlphaAggregator fuses the three agent caches into one AlphaSnapshot per cycle.
type AlphaAggregator struct {
	cache    cache.Service
	bus      pubsub.Bus
	sink     *repository.SafeLog
	metrics  domrepo.Metrics
	l        *applogger.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	history []models.HistoryPoint
	status  models.AgentState
	lastRun time.Time
}

func NewAlphaAggregator(c cache.Service, bus pubsub.Bus, sink *repository.SafeLog, metrics domrepo.Metrics, l *applogger.Logger, interval time.Duration) *AlphaAggregator {
	return &AlphaAggregator{
		cache:    c,
		bus:      bus,
		sink:     sink,
		metrics:  metrics,
		l:        l,
		interval: interval,
		now:      time.Now,
		status:   models.AgentIdle,
	}
}

func (a *AlphaAggregator) Start(s scheduler.Scheduler) {
	s.Schedule(AggregatorTask, a.interval, func(ctx context.Context) { a.RunCycle(ctx) })
}

func (a *AlphaAggregator) Status() AggregatorStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AggregatorStatus{Status: a.status, LastRun: a.lastRun}
}

func (a *AlphaAggregator) setStatus(s models.AgentState) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// RunCycle returns the published snapshot, or nil when the cycle was skipped or failed.
func (a *AlphaAggregator) RunCycle(ctx context.Context) (snap *models.AlphaSnapshot) {
	a.setStatus(models.AgentRunning)
	defer func() {
		if r := recover(); r != nil {
			a.failCycle(fmt.Errorf("panic: %v", r))
			snap = nil
		}
	}()

	snap, err := a.cycle(ctx)
	if err != nil {
		a.failCycle(err)
		return nil
	}
	if snap == nil {
		a.setStatus(models.AgentIdle)
		return nil
	}

	a.mu.Lock()
	a.status = models.AgentIdle
	a.lastRun = snap.CreatedAt
	a.mu.Unlock()
	return snap
}

func (a *AlphaAggregator) failCycle(err error) {
	a.setStatus(models.AgentError)
	a.metrics.RecordError("aggregator")
	a.l.Error("alpha aggregation cycle failed", applogger.Error(err))
}

func (a *AlphaAggregator) cycle(ctx context.Context) (*models.AlphaSnapshot, error) {
	var outs [3]models.AgentOutput
	for i, name := range []string{AgentFundamentalist, AgentSentiment, AgentRisk} {
		out, ok, err := cache.GetTyped[models.AgentOutput](ctx, a.cache, cache.AgentKey(name))
		if err != nil {
			return nil, fmt.Errorf("read %s cache: %w", name, err)
		}
		if !ok {
			a.l.Debug("alpha cycle skipped: agent output missing", applogger.String("agent", name))
			return nil, nil
		}
		outs[i] = out
	}
	f, s, r := outs[0], outs[1], outs[2]

	riskScore := 100 - r.Confidence
	confidence := models.ClampConfidence(
		float64(f.Confidence)*weightFundamental +
			float64(s.Confidence)*weightSentiment +
			float64(100-riskScore)*weightRisk,
	)

	prev, hasPrev, err := cache.GetTyped[models.AlphaSnapshot](ctx, a.cache, cache.AlphaKey)
	if err != nil {
		return nil, fmt.Errorf("read previous alpha: %w", err)
	}
	trend := models.TrendStable
	if hasPrev {
		trend = TrendOf(prev.Confidence, confidence)
	}

	now := a.now().UTC()
	history := a.nextHistory(models.HistoryPoint{Confidence: confidence, Timestamp: now}, prev, hasPrev)
	snap := &models.AlphaSnapshot{
		ID:         uuid.NewString(),
		Confidence: confidence,
		Trend:      trend,
		History:    history,
		Breakdown: models.AlphaBreakdown{
			Fundamental: models.SourceScore{Score: f.Confidence, Provider: f.Provider, Model: f.Model},
			Sentiment:   models.SourceScore{Score: s.Confidence, Provider: s.Provider, Model: s.Model},
			Risk:        models.SourceScore{Score: riskScore, Provider: r.Provider, Model: r.Model},
		},
		Regime:    models.RegimeFromSignal(r.Signal),
		RiskScore: riskScore,
		CreatedAt: now,
	}

	// Nothing of the cycle is kept until it is published and cached.
	if err := a.bus.Publish(ctx, pubsub.ChannelAlphaUpdates, snap); err != nil {
		return nil, fmt.Errorf("publish alpha: %w", err)
	}
	if err := a.cache.Set(ctx, cache.AlphaKey, snap, alphaTTL); err != nil {
		return nil, fmt.Errorf("cache alpha: %w", err)
	}
	a.mu.Lock()
	a.history = history
	a.mu.Unlock()
	a.sink.Alpha(ctx, snap)
	a.metrics.RecordAlpha(confidence)

	a.l.Info("alpha snapshot published",
		applogger.Int("confidence", confidence),
		applogger.String("trend", string(trend)),
		applogger.String("regime", string(snap.Regime)),
		applogger.Int("risk_score", riskScore),
	)
	return snap, nil
}

// nextHistory returns the committed history plus p, capped at AlphaHistoryLimit.
// After a restart the buffer is seeded from the cached snapshot.
func (a *AlphaAggregator) nextHistory(p models.HistoryPoint, prev models.AlphaSnapshot, hasPrev bool) []models.HistoryPoint {
	a.mu.Lock()
	base := a.history
	if len(base) == 0 && hasPrev {
		base = prev.History
	}
	out := make([]models.HistoryPoint, 0, len(base)+1)
	out = append(out, base...)
	a.mu.Unlock()

	out = append(out, p)
	if n := len(out); n > models.AlphaHistoryLimit {
		out = out[n-models.AlphaHistoryLimit:]
	}
	return out
}

func TrendOf(prev, next int) models.Trend {
	switch diff := next - prev; {
	case diff > trendThreshold:
		return models.TrendIncreasing
	case diff < -trendThreshold:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}
