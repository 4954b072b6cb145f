package repository

import (
	"context"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	applogger "AlphaDesk/pkg/logger"
)

// SafeLog wraps a PersistentLog so that write failures are logged and swallowed.
// Callers can record without checking errors.
type SafeLog struct {
	inner   domrepo.PersistentLog
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewSafeLog(inner domrepo.PersistentLog, l *applogger.Logger, m domrepo.Metrics) *SafeLog {
	return &SafeLog{inner: inner, l: l, metrics: m}
}

func (s *SafeLog) swallow(op string, err error) {
	if err == nil {
		return
	}
	perr := &errs.PersistenceError{Op: op, Err: err}
	s.l.Error("persistent log write failed", applogger.String("op", op), applogger.Error(perr))
	s.metrics.RecordError("persistence")
}

func (s *SafeLog) Usage(ctx context.Context, r *models.UsageRecord) {
	s.swallow("usage", s.inner.AppendUsage(ctx, r))
}

func (s *SafeLog) Fallback(ctx context.Context, e *models.FallbackEvent) {
	s.swallow("fallback", s.inner.AppendFallback(ctx, e))
}

func (s *SafeLog) AgentLog(ctx context.Context, e *models.AgentLogEntry) {
	s.swallow("agent_log", s.inner.AppendAgentLog(ctx, e))
}

func (s *SafeLog) Alpha(ctx context.Context, snap *models.AlphaSnapshot) {
	s.swallow("alpha", s.inner.AppendAlpha(ctx, snap))
}

// Emergency reports whether the event was stored.
func (s *SafeLog) Emergency(ctx context.Context, e *models.EmergencyEvent) bool {
	err := s.inner.AppendEmergency(ctx, e)
	s.swallow("emergency", err)
	return err == nil
}

func (s *SafeLog) LatestEmergency(ctx context.Context) *models.EmergencyEvent {
	e, err := s.inner.LatestEmergency(ctx)
	if err != nil {
		s.l.Warn("latest emergency lookup failed", applogger.Error(err))
		return nil
	}
	return e
}
