package usecase

import (
	"context"
	"errors"
	"time"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	domsvc "AlphaDesk/internal/domain/service"
	"AlphaDesk/pkg/cache"
	applogger "AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/scheduler"
)

const (
	HealthCheckTask    = "health-check"
	degradedErrorCount = 5
)

type HealthState string

const (
	HealthActive   HealthState = "active"
	HealthDegraded HealthState = "degraded"
	HealthOffline  HealthState = "offline"
)

type AgentStatus struct {
	Name             string            `json:"name"`
	Status           HealthState       `json:"status"`
	State            models.AgentState `json:"state"`
	Interval         string            `json:"interval"`
	LastRun          *time.Time        `json:"lastRun"`
	AverageLatencyMs int64             `json:"averageLatencyMs"`
	ErrorCount       int64             `json:"errorCount"`
	CurrentProvider  models.ProviderID `json:"currentProvider"`
	CurrentModel     string            `json:"currentModel"`
}

type StatusReport struct {
	Agents      []AgentStatus         `json:"agents"`
	Aggregator  AggregatorStatus      `json:"aggregator"`
	AlphaMetric *models.AlphaSnapshot `json:"alphaMetric"`
	DailyAICost float64               `json:"dailyAiCost"`
	Halted      bool                  `json:"halted"`
}

type OrchestratorOptions struct {
	HealthInterval time.Duration
	// LockTicks skips a tick while the same agent still has one in flight.
	LockTicks bool
}

// Orchestrator schedules every agent independently and reports their health.
type Orchestrator struct {
	runtimes   []*AgentRuntime
	sched      scheduler.Scheduler
	builder    domsvc.ContextBuilder
	aggregator *AlphaAggregator
	halt       *EmergencyStop
	budget     *BudgetGuard
	cache      cache.Service
	metrics    domrepo.Metrics
	l          *applogger.Logger
	opts       OrchestratorOptions
	now        func() time.Time
}

func NewOrchestrator(
	runtimes []*AgentRuntime,
	sched scheduler.Scheduler,
	builder domsvc.ContextBuilder,
	aggregator *AlphaAggregator,
	halt *EmergencyStop,
	budget *BudgetGuard,
	c cache.Service,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts OrchestratorOptions,
) *Orchestrator {
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = 60 * time.Second
	}
	return &Orchestrator{
		runtimes:   runtimes,
		sched:      sched,
		builder:    builder,
		aggregator: aggregator,
		halt:       halt,
		budget:     budget,
		cache:      c,
		metrics:    metrics,
		l:          l,
		opts:       opts,
		now:        time.Now,
	}
}

func agentTask(name string) string { return "agent:" + name }

// Start (re)creates one periodic task per agent plus the health check.
func (o *Orchestrator) Start(ctx context.Context) {
	for _, rt := range o.runtimes {
		o.scheduleAgent(rt)
	}
	o.sched.Schedule(HealthCheckTask, o.opts.HealthInterval, o.HealthCheck)
	o.l.Info("orchestrator started", applogger.Int("agents", len(o.runtimes)))
}

// Stop cancels agent and health-check tasks. In-flight ticks run to completion.
func (o *Orchestrator) Stop() {
	for _, rt := range o.runtimes {
		o.sched.Cancel(agentTask(rt.Name()))
	}
	o.sched.Cancel(HealthCheckTask)
	o.l.Info("orchestrator stopped")
}

func (o *Orchestrator) scheduleAgent(rt *AgentRuntime) {
	o.sched.Schedule(agentTask(rt.Name()), rt.Descriptor().Interval, func(ctx context.Context) {
		o.RunAgent(ctx, rt)
	})
}

// RunAgent performs one scheduled firing: build context, then tick.
func (o *Orchestrator) RunAgent(ctx context.Context, rt *AgentRuntime) {
	name := rt.Name()

	if o.opts.LockTicks {
		key := cache.AgentLockKey(name)
		token, ok, err := o.cache.TryLock(ctx, key, 2*rt.Descriptor().Interval)
		switch {
		case err != nil:
			o.l.Warn("agent lock unavailable, ticking anyway", applogger.String("agent", name), applogger.Error(err))
		case !ok:
			o.metrics.RecordTickSkipped(name, "overlap")
			o.l.Warn("agent tick skipped: previous tick still running", applogger.String("agent", name))
			return
		default:
			defer func() {
				if err := o.cache.Unlock(ctx, key, token); err != nil {
					o.l.Warn("agent unlock failed", applogger.String("agent", name), applogger.Error(err))
				}
			}()
		}
	}

	actx, err := o.builder.Build(ctx)
	if err != nil {
		reason := "context_error"
		if errors.Is(err, errs.ErrContextUnavailable) {
			reason = "context_unavailable"
		}
		o.metrics.RecordTickSkipped(name, reason)
		o.l.Warn("agent tick skipped: context unavailable", applogger.String("agent", name), applogger.Error(err))
		return
	}

	rt.Tick(ctx, actx)
}

// HealthCheck re-creates the task of any agent silent for more than 2x its interval.
func (o *Orchestrator) HealthCheck(ctx context.Context) {
	now := o.now()
	for _, rt := range o.runtimes {
		snap := rt.Descriptor().Snapshot()
		if snap.LastRun.IsZero() {
			continue
		}
		if since := now.Sub(snap.LastRun); since > 2*snap.Interval {
			o.l.Warn("agent stalled, restarting its schedule",
				applogger.String("agent", snap.Name),
				applogger.Duration("since_last_run_ms", since),
			)
			o.scheduleAgent(rt)
		}
	}
}

func (o *Orchestrator) Status(ctx context.Context) StatusReport {
	now := o.now()
	report := StatusReport{
		Agents:     make([]AgentStatus, 0, len(o.runtimes)),
		Aggregator: o.aggregator.Status(),
		Halted:     o.halt.Halted(),
	}

	for _, rt := range o.runtimes {
		snap := rt.Descriptor().Snapshot()
		st := AgentStatus{
			Name:             snap.Name,
			Status:           Classify(snap, now),
			State:            snap.Status,
			Interval:         snap.Interval.String(),
			AverageLatencyMs: snap.AverageLatencyMs(),
			ErrorCount:       snap.ErrorCount,
			CurrentProvider:  snap.CurrentProvider,
			CurrentModel:     snap.CurrentModel,
		}
		if !snap.LastRun.IsZero() {
			lr := snap.LastRun
			st.LastRun = &lr
		}
		report.Agents = append(report.Agents, st)
	}

	alpha, ok, err := cache.GetTyped[models.AlphaSnapshot](ctx, o.cache, cache.AlphaKey)
	if err != nil {
		o.l.Warn("status: alpha cache read failed", applogger.Error(err))
	} else if ok {
		report.AlphaMetric = &alpha
	}

	cost, err := o.budget.DailySpend(ctx)
	if err != nil {
		o.l.Warn("status: daily spend unavailable", applogger.Error(err))
	}
	report.DailyAICost = cost
	return report
}

// Classify maps an agent snapshot to its health state at now.
func Classify(snap models.AgentSnapshot, now time.Time) HealthState {
	if snap.LastRun.IsZero() || now.Sub(snap.LastRun) > snap.Interval*5/2 {
		return HealthOffline
	}
	if snap.Status == models.AgentError || snap.ErrorCount > degradedErrorCount {
		return HealthDegraded
	}
	return HealthActive
}
