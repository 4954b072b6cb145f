//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"AlphaDesk/pkg/config"
	"AlphaDesk/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup closes clients in reverse construction order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Logging and metrics
		ProvideBaseLogger,
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideBus,
		ProvideStore,
		ProvideSafeLog,

		// Provider routing
		ProvideAdapters,
		ProvideKeyResolver,
		ProvideBudgetGuard,
		ProvideRouter,

		// Agents and orchestration
		ProvideHub,
		ProvideEmergencyStop,
		ProvideAgentRuntimes,
		ProvideContextBuilder,
		ProvideAggregator,
		ProvideScheduler,
		ProvideOrchestrator,

		// Edges
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideApp,
	)
	return nil, nil, nil
}
