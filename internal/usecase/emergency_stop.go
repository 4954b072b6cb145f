package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	domsvc "AlphaDesk/internal/domain/service"
	"AlphaDesk/internal/repository"
	"AlphaDesk/pkg/cache"
	applogger "AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/pubsub"
)

const HaltMessageType = "emergency_halt"

// EmergencyStop owns the system-wide Normal to Halted transition.
// Nothing in the core moves back to Normal.
type EmergencyStop struct {
	trades  domrepo.TradeCounter
	sink    *repository.SafeLog
	bus     pubsub.Bus
	clients domsvc.Broadcaster
	cache   cache.Service
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time

	mu     sync.Mutex
	halted atomic.Bool
	last   atomic.Pointer[models.EmergencyEvent]
}

func NewEmergencyStop(
	trades domrepo.TradeCounter,
	sink *repository.SafeLog,
	bus pubsub.Bus,
	clients domsvc.Broadcaster,
	c cache.Service,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *EmergencyStop {
	return &EmergencyStop{
		trades:  trades,
		sink:    sink,
		bus:     bus,
		clients: clients,
		cache:   c,
		metrics: metrics,
		l:       l,
		now:     time.Now,
	}
}

// Restore reloads the halted flag written by a previous process.
func (e *EmergencyStop) Restore(ctx context.Context) {
	ev, ok, err := cache.GetTyped[models.EmergencyEvent](ctx, e.cache, cache.HaltedKey)
	if err != nil {
		e.l.Warn("halt state lookup failed", applogger.Error(err))
	}
	if !ok {
		if latest := e.sink.LatestEmergency(ctx); latest != nil && !latest.Resolved {
			ev, ok = *latest, true
		}
	}
	if ok {
		e.halted.Store(true)
		e.last.Store(&ev)
		e.l.Warn("system starts halted", applogger.String("event_id", ev.ID), applogger.String("reason", ev.Reason))
	}
}

func (e *EmergencyStop) Halted() bool {
	return e.halted.Load()
}

func (e *EmergencyStop) LastEvent() *models.EmergencyEvent {
	return e.last.Load()
}

// Trigger records one EmergencyEvent and sends one halt broadcast per call.
// Every side effect is best-effort and independent of the others.
func (e *EmergencyStop) Trigger(ctx context.Context, req domsvc.HaltRequest) (*models.EmergencyEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record(ctx, req), nil
}

// TriggerIfNormal halts only from Normal. When the system is already halted it
// records nothing and returns the event in force with triggered=false.
func (e *EmergencyStop) TriggerIfNormal(ctx context.Context, req domsvc.HaltRequest) (ev *models.EmergencyEvent, triggered bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted.Load() {
		return e.last.Load(), false, nil
	}
	return e.record(ctx, req), true, nil
}

// record performs the halt side effects. Caller holds e.mu.
func (e *EmergencyStop) record(ctx context.Context, req domsvc.HaltRequest) *models.EmergencyEvent {
	trades, err := e.trades.CountOpenTrades(ctx)
	if err != nil {
		e.l.Warn("open trade count unavailable, assuming 0", applogger.Error(err))
		trades = 0
	}

	ev := &models.EmergencyEvent{
		ID:             uuid.NewString(),
		Reason:         req.Reason,
		TradesAffected: trades,
		Metadata: models.EmergencyMetadata{
			Provider:  req.Provider,
			RiskScore: req.RiskScore,
			Warnings:  req.Warnings,
		},
		Resolved:  false,
		CreatedAt: e.now().UTC(),
	}
	wasHalted := e.halted.Swap(true)
	e.last.Store(ev)

	e.sink.Emergency(ctx, ev)

	msg := models.HaltMessage{
		Type:      HaltMessageType,
		EventID:   ev.ID,
		Reason:    ev.Reason,
		RiskScore: req.RiskScore,
		Timestamp: ev.CreatedAt,
	}
	if err := e.bus.Publish(ctx, pubsub.ChannelEmergency, msg); err != nil {
		e.l.Error("emergency broadcast failed", applogger.String("event_id", ev.ID), applogger.Error(err))
	}
	if e.clients != nil {
		e.clients.BroadcastAll(HaltMessageType, msg)
	}
	if err := e.cache.Set(ctx, cache.HaltedKey, ev, 0); err != nil {
		e.l.Error("halt flag cache write failed", applogger.Error(err))
	}
	e.metrics.RecordEmergencyStop()

	e.l.Error("EMERGENCY STOP: trading halted",
		applogger.String("event_id", ev.ID),
		applogger.String("reason", ev.Reason),
		applogger.Int("risk_score", req.RiskScore),
		applogger.Int("trades_affected", trades),
		applogger.Bool("already_halted", wasHalted),
	)
	return ev
}
