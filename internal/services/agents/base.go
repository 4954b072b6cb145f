package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"AlphaDesk/internal/domain/models"
	domsvc "AlphaDesk/internal/domain/service"
)

// rawConfidence is used when a model answers in prose instead of JSON.
const rawConfidence = 30

// Config is the per-agent routing setup.
type Config struct {
	Selection models.ProviderSelection
	UserID    string
	MaxTokens int
}

// analyst is the shared routing half of every agent.
type analyst struct {
	name   string
	router domsvc.AIRouter
	cfg    Config
}

func (a *analyst) ask(ctx context.Context, system, user, schema string) (*models.AIResponse, error) {
	resp, err := a.router.Route(ctx, a.cfg.Selection, models.AIRequest{
		SystemPrompt:   system,
		UserPrompt:     user,
		ResponseSchema: schema,
		MaxTokens:      a.cfg.MaxTokens,
		AgentName:      a.name,
	}, a.cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s route: %w", strings.ToLower(a.name), err)
	}
	return resp, nil
}

// rawOutput turns an unstructured answer into a neutral low-confidence signal.
func rawOutput(resp *models.AIResponse, text string) *models.AgentOutput {
	return &models.AgentOutput{
		Signal:     "neutral",
		Confidence: rawConfidence,
		Reasoning:  text,
		Provider:   resp.Provider,
		Model:      resp.Model,
	}
}

type alphaBrief struct {
	Confidence int           `json:"confidence"`
	Trend      models.Trend  `json:"trend"`
	Regime     models.Regime `json:"regime"`
}

// marketBrief renders the shared context as compact JSON for prompts.
func marketBrief(actx *models.AgentContext) string {
	brief := struct {
		Prices    []models.PricePoint `json:"prices"`
		Whales    []models.WhaleAlert `json:"whales,omitempty"`
		LastAlpha *alphaBrief         `json:"lastAlpha,omitempty"`
	}{Prices: actx.Prices, Whales: actx.Whales}

	if a := actx.LastAlpha; a != nil {
		brief.LastAlpha = &alphaBrief{Confidence: a.Confidence, Trend: a.Trend, Regime: a.Regime}
	}
	b, err := json.Marshal(brief)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func normalizeSignal(s string, allowed ...string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return allowed[len(allowed)-1]
}
