package usecase

import (
	"context"
	"fmt"
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

const maxErrorMessage = 200

// AgentRuntime runs one agent's Analyze inside a failure-proof envelope.
type AgentRuntime struct {
	agent   domsvc.Agent
	desc    *models.AgentDescriptor
	cache   cache.Service
	bus     pubsub.Bus
	sink    *repository.SafeLog
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

func NewAgentRuntime(
	agent domsvc.Agent,
	desc *models.AgentDescriptor,
	c cache.Service,
	bus pubsub.Bus,
	sink *repository.SafeLog,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *AgentRuntime {
	return &AgentRuntime{
		agent:   agent,
		desc:    desc,
		cache:   c,
		bus:     bus,
		sink:    sink,
		metrics: metrics,
		l:       l.With(applogger.String("agent", desc.Name)),
		now:     time.Now,
	}
}

func (rt *AgentRuntime) Name() string                        { return rt.desc.Name }
func (rt *AgentRuntime) Descriptor() *models.AgentDescriptor { return rt.desc }

// Tick never returns an error; a failed tick yields nil.
func (rt *AgentRuntime) Tick(ctx context.Context, actx *models.AgentContext) *models.AgentOutput {
	rt.desc.MarkRunning()
	start := rt.now()
	if actx == nil {
		actx = models.EmptyContext()
	}

	out, err := rt.analyze(ctx, actx)
	latency := rt.now().Sub(start)
	if err == nil && out == nil {
		err = fmt.Errorf("agent returned no output")
	}
	if err != nil {
		rt.fail(ctx, err, latency)
		return nil
	}

	out.AgentName = rt.desc.Name
	out.Confidence = models.ClampConfidence(float64(out.Confidence))
	if out.CreatedAt.IsZero() {
		out.CreatedAt = rt.now().UTC()
	}
	rt.desc.MarkSuccess(rt.now(), latency, out.Provider, out.Model)

	rt.emit(ctx, out, Severity(out), latency)
	if err := rt.cache.Set(ctx, cache.AgentKey(rt.desc.Name), out, 2*rt.desc.Interval); err != nil {
		rt.l.Error("agent output cache write failed", applogger.Error(err))
	}
	rt.metrics.RecordTick(rt.desc.Name, latency.Seconds(), true)

	rt.l.Info("agent tick completed",
		applogger.String("signal", out.Signal),
		applogger.Int("confidence", out.Confidence),
		applogger.String("provider", string(out.Provider)),
		applogger.Duration("latency_ms", latency),
	)
	return out
}

func (rt *AgentRuntime) analyze(ctx context.Context, actx *models.AgentContext) (out *models.AgentOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rt.agent.Analyze(ctx, actx)
}

func (rt *AgentRuntime) fail(ctx context.Context, err error, latency time.Duration) {
	rt.desc.MarkFailure()
	rt.metrics.RecordTick(rt.desc.Name, latency.Seconds(), false)

	snap := rt.desc.Snapshot()
	out := &models.AgentOutput{
		AgentName:  rt.desc.Name,
		Signal:     models.SignalError,
		Confidence: 0,
		Reasoning:  truncate(err.Error(), maxErrorMessage),
		Provider:   snap.CurrentProvider,
		Model:      snap.CurrentModel,
		CreatedAt:  rt.now().UTC(),
	}
	rt.emit(ctx, out, models.LevelAlert, latency)

	rt.l.Error("agent tick failed",
		applogger.Int64("error_count", snap.ErrorCount),
		applogger.Error(err),
	)
}

func (rt *AgentRuntime) emit(ctx context.Context, out *models.AgentOutput, level models.LogLevel, latency time.Duration) {
	entry := &models.AgentLogEntry{
		ID:         uuid.NewString(),
		AgentName:  out.AgentName,
		Level:      level,
		Signal:     out.Signal,
		Confidence: out.Confidence,
		Reasoning:  out.Reasoning,
		Provider:   out.Provider,
		Model:      out.Model,
		LatencyMs:  latency.Milliseconds(),
		CreatedAt:  out.CreatedAt,
	}
	rt.sink.AgentLog(ctx, entry)
	if err := rt.bus.Publish(ctx, pubsub.ChannelAgentLogs, entry); err != nil {
		rt.l.Warn("agent log publish failed", applogger.Error(err))
	}
}

// Severity classifies a successful output for the log stream.
func Severity(out *models.AgentOutput) models.LogLevel {
	switch {
	case out.Confidence > 80:
		return models.LevelAlert
	case out.Signal == "neutral":
		return models.LevelInfo
	default:
		return models.LevelWarn
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
