package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	"AlphaDesk/internal/repository"
	applogger "AlphaDesk/pkg/logger"
)

type RouterOptions struct {
	Fallback         bool
	DefaultMaxTokens int
}

// ProviderRouter executes AI calls with budget enforcement and ordered provider fallback.
// It holds no per-call mutable state and is safe for concurrent use.
type ProviderRouter struct {
	catalog  *Catalog
	adapters map[models.ProviderID]domrepo.ProviderAdapter
	keys     *KeyResolver
	budget   *BudgetGuard
	sink     *repository.SafeLog
	metrics  domrepo.Metrics
	l        *applogger.Logger
	opts     RouterOptions
	now      func() time.Time
}

func NewProviderRouter(
	catalog *Catalog,
	adapters map[models.ProviderID]domrepo.ProviderAdapter,
	keys *KeyResolver,
	budget *BudgetGuard,
	sink *repository.SafeLog,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts RouterOptions,
) *ProviderRouter {
	if opts.DefaultMaxTokens <= 0 {
		opts.DefaultMaxTokens = 1024
	}
	return &ProviderRouter{
		catalog:  catalog,
		adapters: adapters,
		keys:     keys,
		budget:   budget,
		sink:     sink,
		metrics:  metrics,
		l:        l,
		opts:     opts,
		now:      time.Now,
	}
}

func (r *ProviderRouter) Route(ctx context.Context, sel models.ProviderSelection, req models.AIRequest, userID string) (*models.AIResponse, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = r.opts.DefaultMaxTokens
	}

	sel, err := r.enforceBudget(ctx, sel, req, userID)
	if err != nil {
		return nil, err
	}
	if err := r.catalog.Validate(sel); err != nil {
		return nil, err
	}

	var lastErr error
	for i, cand := range r.candidates(sel) {
		key := r.keys.Resolve(ctx, userID, cand.Provider)
		adapter, ok := r.adapters[cand.Provider]
		if key == "" || !ok {
			r.l.Debug("provider skipped: not configured",
				applogger.String("provider", string(cand.Provider)),
				applogger.String("agent", req.AgentName),
			)
			continue
		}

		start := r.now()
		resp, err := adapter.Complete(ctx, req, cand.Model, key)
		latency := r.now().Sub(start)

		if err == nil {
			r.complete(resp, cand, latency)
			r.recordAttempt(ctx, cand, req, userID, resp, latency, nil)
			if i > 0 {
				r.recordFallback(ctx, sel, cand, req, userID, i)
			}
			return resp, nil
		}

		r.recordAttempt(ctx, cand, req, userID, nil, latency, err)
		lastErr = err

		if i == 0 && errs.IsNonRetryable(err) {
			return nil, err
		}
		r.l.Warn("provider attempt failed",
			applogger.String("provider", string(cand.Provider)),
			applogger.String("model", cand.Model),
			applogger.String("code", errs.CodeOf(err)),
			applogger.String("agent", req.AgentName),
			applogger.Error(err),
		)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errs.ErrNoProviderAvailable
}

// enforceBudget downgrades once to the provider's cheapest model before giving up.
func (r *ProviderRouter) enforceBudget(ctx context.Context, sel models.ProviderSelection, req models.AIRequest, userID string) (models.ProviderSelection, error) {
	st, err := r.budget.Check(ctx, userID, r.catalog.Estimate(sel, req))
	if err != nil {
		r.l.Warn("budget check unavailable, allowing call", applogger.String("user_id", userID), applogger.Error(err))
		return sel, nil
	}
	if !st.Exceeded {
		return sel, nil
	}

	if cheapest, ok := r.catalog.Cheapest(sel.Provider); ok && cheapest != sel.Model {
		downgraded := models.ProviderSelection{Provider: sel.Provider, Model: cheapest}
		st2, err := r.budget.Check(ctx, userID, r.catalog.Estimate(downgraded, req))
		if err != nil {
			r.l.Warn("budget re-check unavailable, allowing downgraded call",
				applogger.String("from", sel.String()),
				applogger.String("to", downgraded.String()),
				applogger.String("user_id", userID),
				applogger.Error(err),
			)
			return downgraded, nil
		}
		if !st2.Exceeded {
			r.l.Warn("budget pressure: model downgraded",
				applogger.String("from", sel.String()),
				applogger.String("to", downgraded.String()),
				applogger.String("user_id", userID),
				applogger.Float64("spent_usd", st2.Spent),
				applogger.Float64("limit_usd", st2.Limit),
			)
			return downgraded, nil
		}
		st, sel = st2, downgraded
	}

	return sel, &errs.BudgetExceededError{UserID: userID, SpentUS: st.Spent, LimitUS: st.Limit, Model: sel.String()}
}

// candidates is the requested selection, then every other provider on its cheapest model.
func (r *ProviderRouter) candidates(sel models.ProviderSelection) []models.ProviderSelection {
	out := []models.ProviderSelection{sel}
	if !r.opts.Fallback {
		return out
	}
	for _, p := range models.ProviderPriority {
		if p == sel.Provider {
			continue
		}
		model, ok := r.catalog.Cheapest(p)
		if !ok {
			continue
		}
		out = append(out, models.ProviderSelection{Provider: p, Model: model})
	}
	return out
}

func (r *ProviderRouter) complete(resp *models.AIResponse, cand models.ProviderSelection, latency time.Duration) {
	resp.Provider = cand.Provider
	if resp.Model == "" {
		resp.Model = cand.Model
	}
	if resp.LatencyMs == 0 {
		resp.LatencyMs = latency.Milliseconds()
	}
	if resp.CostUSD == 0 {
		resp.CostUSD = r.catalog.Cost(cand, resp.TokensInput, resp.TokensOutput)
	}
}

func (r *ProviderRouter) recordAttempt(ctx context.Context, cand models.ProviderSelection, req models.AIRequest, userID string, resp *models.AIResponse, latency time.Duration, callErr error) {
	rec := &models.UsageRecord{
		ID:        uuid.NewString(),
		Provider:  cand.Provider,
		Model:     cand.Model,
		UserID:    userID,
		AgentName: req.AgentName,
		LatencyMs: latency.Milliseconds(),
		Success:   callErr == nil,
		CreatedAt: r.now().UTC(),
	}
	if resp != nil {
		rec.TokensInput = resp.TokensInput
		rec.TokensOutput = resp.TokensOutput
		rec.LatencyMs = resp.LatencyMs
		rec.CostUSD = resp.CostUSD
	}
	if callErr != nil {
		rec.ErrorCode = errs.CodeOf(callErr)
		if errors.Is(callErr, context.DeadlineExceeded) {
			rec.ErrorCode = errs.CodeTimeout
		}
	}

	r.sink.Usage(ctx, rec)
	r.metrics.RecordAttempt(string(cand.Provider), cand.Model, callErr == nil)
	r.metrics.RecordCost(string(cand.Provider), rec.CostUSD)
}

func (r *ProviderRouter) recordFallback(ctx context.Context, requested, served models.ProviderSelection, req models.AIRequest, userID string, attempt int) {
	ev := &models.FallbackEvent{
		ID:        uuid.NewString(),
		Requested: requested,
		Served:    served,
		AgentName: req.AgentName,
		UserID:    userID,
		Attempt:   attempt,
		CreatedAt: r.now().UTC(),
	}
	r.l.Warn("provider fallback served request",
		applogger.String("requested", requested.String()),
		applogger.String("served", served.String()),
		applogger.String("agent", req.AgentName),
		applogger.Int("attempt", attempt),
	)
	r.sink.Fallback(ctx, ev)
	r.metrics.RecordFallback(string(requested.Provider), string(served.Provider))
}
