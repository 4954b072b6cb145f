package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	"AlphaDesk/internal/repository"
	"AlphaDesk/pkg/cache"
	"AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/metrics"
	"AlphaDesk/pkg/pubsub"
	"AlphaDesk/pkg/scheduler"
)

type adapterCall struct {
	Model  string
	APIKey string
	Req    models.AIRequest
}

// scriptedAdapter replies from a queue; the last reply repeats.
type scriptedAdapter struct {
	mu      sync.Mutex
	replies []adapterReply
	calls   []adapterCall
}

type adapterReply struct {
	resp *models.AIResponse
	err  error
}

func replyOK(content string) adapterReply {
	return adapterReply{resp: &models.AIResponse{Content: content, TokensInput: 1000, TokensOutput: 500}}
}

func replyErr(err error) adapterReply {
	return adapterReply{err: err}
}

func newScripted(replies ...adapterReply) *scriptedAdapter {
	return &scriptedAdapter{replies: replies}
}

func (a *scriptedAdapter) Complete(_ context.Context, req models.AIRequest, model, apiKey string) (*models.AIResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, adapterCall{Model: model, APIKey: apiKey, Req: req})
	r := a.replies[0]
	if len(a.replies) > 1 {
		a.replies = a.replies[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	cp := *r.resp
	return &cp, nil
}

func (a *scriptedAdapter) Calls() []adapterCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]adapterCall(nil), a.calls...)
}

var testDay = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type routerFixture struct {
	router   *ProviderRouter
	log      *repository.MemoryLog
	adapters map[models.ProviderID]*scriptedAdapter
	keys     *repository.MemoryKeyStore
	guard    *BudgetGuard
}

func allDefaultKeys() map[models.ProviderID]string {
	return map[models.ProviderID]string{
		models.ProviderOpenAI:    "sk-openai",
		models.ProviderAnthropic: "sk-anthropic",
		models.ProviderGemini:    "sk-gemini",
		models.ProviderDeepSeek:  "sk-deepseek",
	}
}

func newRouterFixture(defaults map[models.ProviderID]string, secret *[32]byte, systemLimit, userLimit float64, fallback bool) *routerFixture {
	log := repository.NewMemoryLog(0)
	ks := repository.NewMemoryKeyStore()
	sink := repository.NewSafeLog(log, logger.NewNop(), metrics.Nop{})

	scripted := map[models.ProviderID]*scriptedAdapter{}
	adapters := map[models.ProviderID]domrepo.ProviderAdapter{}
	for _, p := range models.ProviderPriority {
		a := newScripted(replyOK(`{"ok":true}`))
		scripted[p] = a
		adapters[p] = a
	}

	guard := NewBudgetGuard(log, systemLimit, userLimit)
	guard.now = func() time.Time { return testDay }

	r := NewProviderRouter(
		DefaultCatalog(),
		adapters,
		NewKeyResolver(ks, secret, defaults, logger.NewNop()),
		guard,
		sink,
		metrics.Nop{},
		logger.NewNop(),
		RouterOptions{Fallback: fallback, DefaultMaxTokens: 1000},
	)
	return &routerFixture{router: r, log: log, adapters: scripted, keys: ks, guard: guard}
}

type fakeAgent struct {
	name string
	fn   func(ctx context.Context, actx *models.AgentContext) (*models.AgentOutput, error)
}

func (a *fakeAgent) Name() string { return a.name }

func (a *fakeAgent) Analyze(ctx context.Context, actx *models.AgentContext) (*models.AgentOutput, error) {
	return a.fn(ctx, actx)
}

type fakeScheduler struct {
	mu        sync.Mutex
	tasks     map[string]time.Duration
	fns       map[string]func(context.Context)
	schedules map[string]int
	cancelled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		tasks:     map[string]time.Duration{},
		fns:       map[string]func(context.Context){},
		schedules: map[string]int{},
	}
}

func (s *fakeScheduler) Schedule(name string, every time.Duration, fn scheduler.Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = every
	s.fns[name] = fn
	s.schedules[name]++
}

func (s *fakeScheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	delete(s.tasks, name)
	s.cancelled = append(s.cancelled, name)
	return ok
}

func (s *fakeScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = map[string]time.Duration{}
}

func (s *fakeScheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tasks))
	for n := range s.tasks {
		out = append(out, n)
	}
	return out
}

func (s *fakeScheduler) fire(name string) {
	s.mu.Lock()
	fn := s.fns[name]
	s.mu.Unlock()
	fn(context.Background())
}

type recordingBus struct {
	*pubsub.MemoryBus
	mu       sync.Mutex
	messages map[string][][]byte
	failOn   string
}

func newRecordingBus() *recordingBus {
	return &recordingBus{MemoryBus: pubsub.NewMemoryBus(), messages: map[string][][]byte{}}
}

func (b *recordingBus) Publish(ctx context.Context, channel string, payload interface{}) error {
	if channel == b.failOn {
		return errors.New("bus down")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.messages[channel] = append(b.messages[channel], data)
	b.mu.Unlock()
	return b.MemoryBus.Publish(ctx, channel, data)
}

func (b *recordingBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages[channel])
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type coreFixture struct {
	clock   *clock
	cache   *cache.MemoryCache
	bus     *recordingBus
	log     *repository.MemoryLog
	sink    *repository.SafeLog
	metrics domrepo.Metrics
}

func newCoreFixture(t *testing.T) *coreFixture {
	t.Helper()
	clk := newClock(testDay)
	mc := cache.NewMemoryCache(cache.WithMemoryClock(clk.Now))
	t.Cleanup(func() { _ = mc.Close() })
	log := repository.NewMemoryLog(0)
	return &coreFixture{
		clock:   clk,
		cache:   mc,
		bus:     newRecordingBus(),
		log:     log,
		sink:    repository.NewSafeLog(log, logger.NewNop(), metrics.Nop{}),
		metrics: metrics.Nop{},
	}
}

func (f *coreFixture) runtime(agent *fakeAgent, interval time.Duration) *AgentRuntime {
	desc := models.NewAgentDescriptor(agent.name, interval, models.ProviderSelection{Provider: models.ProviderOpenAI, Model: "gpt-4o-mini"})
	rt := NewAgentRuntime(agent, desc, f.cache, f.bus, f.sink, f.metrics, logger.NewNop())
	rt.now = f.clock.Now
	return rt
}

func (f *coreFixture) putOutput(t *testing.T, name string, out models.AgentOutput, ttl time.Duration) {
	t.Helper()
	require.NoError(t, f.cache.Set(context.Background(), cache.AgentKey(name), out, ttl))
}
