package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	domsvc "AlphaDesk/internal/domain/service"
	"AlphaDesk/internal/handler/api"
	"AlphaDesk/internal/realtime"
	"AlphaDesk/internal/repository"
	"AlphaDesk/internal/service/providers"
	"AlphaDesk/internal/services/agents"
	"AlphaDesk/internal/usecase"
	"AlphaDesk/pkg/cache"
	pkgch "AlphaDesk/pkg/clickhouse"
	"AlphaDesk/pkg/config"
	xhttp "AlphaDesk/pkg/http"
	pkgkafka "AlphaDesk/pkg/kafka"
	applogger "AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/metrics"
	"AlphaDesk/pkg/pubsub"
	"AlphaDesk/pkg/scheduler"
	"AlphaDesk/pkg/server"
)

// BaseLogger is the logger before the error collector is attached. Only the
// bus and the Kafka producer use it, because the collector publishes through them.
type BaseLogger struct{ *applogger.Logger }

// Store is the durable log plus the read models the core queries from it.
type Store interface {
	domrepo.PersistentLog
	domrepo.SpendSource
	domrepo.TradeCounter
	domrepo.PriceFeed
}

func ProvideBaseLogger(cfg *config.Config) (BaseLogger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return BaseLogger{}, fmt.Errorf("logger: %w", err)
	}
	return BaseLogger{l.With(applogger.String("env", cfg.Environment))}, nil
}

// ProvideLogger attaches the collector that batches repeated errors onto system:logs.
func ProvideLogger(cfg *config.Config, base BaseLogger, bus pubsub.Bus) (*applogger.Logger, func()) {
	l := base.With()
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Log.CollectInterval,
		CountThreshold: cfg.Log.CollectThreshold,
		Topic:          pubsub.ChannelSystemLogs,
		Publisher:      bus,
	})
	return l, l.RemoveCollector
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	return metrics.New(reg)
}

// ProvideRedisClient returns nil when neither the cache nor the bus uses Redis.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if cfg.Cache.Type != "redis" && cfg.Broadcast.Type != "redis" {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideCache(cfg *config.Config, rc *redis.Client) (cache.Service, func()) {
	if cfg.Cache.Type == "redis" {
		return cache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix), func() {}
	}
	mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	return mc, func() { _ = mc.Close() }
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, base BaseLogger, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithProducerLogger(base.Logger),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, func() {
		if err := p.Close(); err != nil {
			base.Warn("kafka producer close failed", applogger.Error(err))
		}
	}, nil
}

// ProvideBus picks the primary bus and mirrors it to Kafka when a producer exists.
func ProvideBus(cfg *config.Config, base BaseLogger, rc *redis.Client, producer *pkgkafka.Producer) (pubsub.Bus, func()) {
	var primary pubsub.Bus
	if cfg.Broadcast.Type == "redis" {
		primary = pubsub.NewRedisBus(rc, cfg.Redis.Prefix, base.Logger)
	} else {
		primary = pubsub.NewMemoryBus()
	}
	cleanup := func() { _ = primary.Close() }
	if producer == nil {
		return primary, cleanup
	}
	return pubsub.NewMirroredBus(primary, producer, cfg.Broadcast.MirrorTopic, base.Logger), cleanup
}

// ProvideStore opens ClickHouse and applies the schema, or falls back to the in-process log.
func ProvideStore(cfg *config.Config, l *applogger.Logger) (Store, func(), error) {
	if cfg.Storage.Type != "clickhouse" {
		return repository.NewMemoryLog(0), func() {}, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, false),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, repository.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	store := repository.NewClickHouseLog(client, cfg.ClickHouse.Database, cfg.ClickHouse.TicksTable, cfg.ClickHouse.TradesTable, l)
	return store, func() {
		if err := store.Close(); err != nil {
			l.Warn("clickhouse close failed", applogger.Error(err))
		}
	}, nil
}

func ProvideSafeLog(store Store, l *applogger.Logger, m domrepo.Metrics) *repository.SafeLog {
	return repository.NewSafeLog(store, l, m)
}

// ProvideAdapters builds one rate-limited, circuit-broken adapter per provider.
func ProvideAdapters(cfg *config.Config, l *applogger.Logger) map[models.ProviderID]domrepo.ProviderAdapter {
	out := make(map[models.ProviderID]domrepo.ProviderAdapter, len(models.ProviderPriority))
	for _, p := range models.ProviderPriority {
		pc, _ := cfg.Providers.Provider(string(p))
		out[p] = providers.NewGuarded(p, providers.NewOpenAICompat(p, pc.BaseURL, pc.Timeout), providers.GuardOptions{
			RatePerSecond: pc.RateLimit,
			Burst:         pc.Burst,
			MaxFailures:   cfg.Providers.Breaker.MaxFailures,
			OpenTimeout:   cfg.Providers.Breaker.OpenTimeout,
		}, l)
	}
	return out
}

func ProvideKeyResolver(cfg *config.Config, rc *redis.Client, l *applogger.Logger) (*usecase.KeyResolver, error) {
	var store domrepo.KeyStore = repository.NewMemoryKeyStore()
	if rc != nil {
		store = repository.NewRedisKeyStore(rc, cfg.Redis.Prefix)
	}

	var secret *[32]byte
	if cfg.Crypto.KeySecret != "" {
		s, err := usecase.ParseKeySecret(cfg.Crypto.KeySecret)
		if err != nil {
			return nil, err
		}
		secret = s
	}

	defaults := make(map[models.ProviderID]string, len(models.ProviderPriority))
	for _, p := range models.ProviderPriority {
		if pc, ok := cfg.Providers.Provider(string(p)); ok && pc.APIKey != "" {
			defaults[p] = pc.APIKey
		}
	}
	return usecase.NewKeyResolver(store, secret, defaults, l), nil
}

func ProvideBudgetGuard(cfg *config.Config, store Store) *usecase.BudgetGuard {
	return usecase.NewBudgetGuard(store, cfg.Router.SystemDailyBudgetUSD, cfg.Router.UserDailyBudgetUSD)
}

func ProvideRouter(
	cfg *config.Config,
	adapters map[models.ProviderID]domrepo.ProviderAdapter,
	keys *usecase.KeyResolver,
	budget *usecase.BudgetGuard,
	sink *repository.SafeLog,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.ProviderRouter {
	return usecase.NewProviderRouter(usecase.DefaultCatalog(), adapters, keys, budget, sink, m, l, usecase.RouterOptions{
		Fallback:         !cfg.Router.DisableFallback,
		DefaultMaxTokens: cfg.Router.DefaultMaxTokens,
	})
}

func ProvideHub(cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) *realtime.Hub {
	return realtime.NewHub(cfg.Server.WSSendBuffer, m, l)
}

func ProvideEmergencyStop(
	store Store,
	sink *repository.SafeLog,
	bus pubsub.Bus,
	hub *realtime.Hub,
	c cache.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.EmergencyStop {
	return usecase.NewEmergencyStop(store, sink, bus, hub, c, m, l)
}

func agentConfig(cfg *config.Config, ac config.AgentConfig) (agents.Config, error) {
	provider, err := models.ParseProviderID(ac.Provider)
	if err != nil {
		return agents.Config{}, err
	}
	return agents.Config{
		Selection: models.ProviderSelection{Provider: provider, Model: ac.Model},
		UserID:    ac.UserID,
		MaxTokens: cfg.Router.DefaultMaxTokens,
	}, nil
}

// ProvideAgentRuntimes wraps the three analysts in their runtime envelopes.
func ProvideAgentRuntimes(
	cfg *config.Config,
	router *usecase.ProviderRouter,
	halt *usecase.EmergencyStop,
	c cache.Service,
	bus pubsub.Bus,
	sink *repository.SafeLog,
	m domrepo.Metrics,
	l *applogger.Logger,
) ([]*usecase.AgentRuntime, error) {
	type entry struct {
		conf  config.AgentConfig
		build func(agents.Config) domsvc.Agent
	}
	entries := []entry{
		{cfg.Agents.Fundamentalist, func(ac agents.Config) domsvc.Agent { return agents.NewFundamentalist(router, ac) }},
		{cfg.Agents.Sentiment, func(ac agents.Config) domsvc.Agent { return agents.NewSentiment(router, ac) }},
		{cfg.Agents.Risk, func(ac agents.Config) domsvc.Agent { return agents.NewRisk(router, ac, halt, l) }},
	}

	runtimes := make([]*usecase.AgentRuntime, 0, len(entries))
	for _, e := range entries {
		ac, err := agentConfig(cfg, e.conf)
		if err != nil {
			return nil, fmt.Errorf("agent config: %w", err)
		}
		agent := e.build(ac)
		desc := models.NewAgentDescriptor(agent.Name(), e.conf.Interval, ac.Selection)
		runtimes = append(runtimes, usecase.NewAgentRuntime(agent, desc, c, bus, sink, m, l))
	}
	return runtimes, nil
}

func ProvideContextBuilder(cfg *config.Config, store Store, c cache.Service, l *applogger.Logger) domsvc.ContextBuilder {
	return usecase.NewMarketContextBuilder(store, c, cfg.Orchestrator.PriceLimit, l)
}

func ProvideAggregator(cfg *config.Config, c cache.Service, bus pubsub.Bus, sink *repository.SafeLog, m domrepo.Metrics, l *applogger.Logger) *usecase.AlphaAggregator {
	return usecase.NewAlphaAggregator(c, bus, sink, m, l, cfg.Aggregator.Interval)
}

func ProvideScheduler(l *applogger.Logger) (*scheduler.Ticker, func()) {
	s := scheduler.New(context.Background(), l)
	return s, s.StopAll
}

func ProvideOrchestrator(
	cfg *config.Config,
	runtimes []*usecase.AgentRuntime,
	sched *scheduler.Ticker,
	builder domsvc.ContextBuilder,
	aggregator *usecase.AlphaAggregator,
	halt *usecase.EmergencyStop,
	budget *usecase.BudgetGuard,
	c cache.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(runtimes, sched, builder, aggregator, halt, budget, c, m, l, usecase.OrchestratorOptions{
		HealthInterval: cfg.Orchestrator.HealthInterval,
		LockTicks:      !cfg.Orchestrator.DisableAgentLock,
	})
}

func ProvideHTTPServer(
	cfg *config.Config,
	orch *usecase.Orchestrator,
	halt *usecase.EmergencyStop,
	hub *realtime.Hub,
	reg *prometheus.Registry,
	l *applogger.Logger,
) *xhttp.Server {
	h := api.NewOrchestratorHandler(l, orch, halt, hub)
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(!cfg.Server.DisableCORS, cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(reg, cfg.Server.MetricsPath),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
	)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, c cache.Service, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	kc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewWhaleFeed(kc.WhaleTopic, kc.WhaleWindow, c, l))
	return consumer, nil
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	orch *usecase.Orchestrator,
	aggregator *usecase.AlphaAggregator,
	sched *scheduler.Ticker,
	halt *usecase.EmergencyStop,
	hub *realtime.Hub,
	bus pubsub.Bus,
	consumer *pkgkafka.Consumer,
	srv *xhttp.Server,
) *server.App {
	return server.New(cfg, l, orch, aggregator, sched, halt, hub, bus, consumer, srv)
}
