package service

import (
	"context"

	"AlphaDesk/internal/domain/models"
)

// AIRouter executes an AI call with budget enforcement and provider fallback.
type AIRouter interface {
	Route(ctx context.Context, sel models.ProviderSelection, req models.AIRequest, userID string) (*models.AIResponse, error)
}

// Agent produces one signal per tick.
type Agent interface {
	Name() string
	Analyze(ctx context.Context, actx *models.AgentContext) (*models.AgentOutput, error)
}

// HaltRequest describes why the system should halt.
type HaltRequest struct {
	Reason    string
	Provider  models.ProviderID
	RiskScore int
	Warnings  []string
}

// HaltTrigger performs the Normal to Halted transition.
type HaltTrigger interface {
	Trigger(ctx context.Context, req HaltRequest) (*models.EmergencyEvent, error)
}

// ContextBuilder assembles the shared read-only snapshot for agent ticks.
type ContextBuilder interface {
	Build(ctx context.Context) (*models.AgentContext, error)
}

// Broadcaster pushes a message to every connected real-time client.
type Broadcaster interface {
	BroadcastAll(msgType string, payload interface{})
}
