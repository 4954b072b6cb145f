package agents

import (
	"context"
	"fmt"

	"AlphaDesk/internal/domain/models"
	domsvc "AlphaDesk/internal/domain/service"
)

const sentimentSystem = `You read market mood. Weigh whale transfers toward and away from exchanges
and short-term momentum, then score crowd sentiment.`

const sentimentSchema = `{"signal":"bullish|bearish|neutral","confidence":0-100,"reasoning":"string"}`

type sentimentView struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type Sentiment struct{ analyst }

func NewSentiment(router domsvc.AIRouter, cfg Config) *Sentiment {
	return &Sentiment{analyst{name: "Sentiment", router: router, cfg: cfg}}
}

func (s *Sentiment) Name() string { return s.name }

func (s *Sentiment) Analyze(ctx context.Context, actx *models.AgentContext) (*models.AgentOutput, error) {
	prompt := fmt.Sprintf("Whale alerts in window: %d\nMarket snapshot:\n%s", len(actx.Whales), marketBrief(actx))
	resp, err := s.ask(ctx, sentimentSystem, prompt, sentimentSchema)
	if err != nil {
		return nil, err
	}

	res := models.ParseStructured[sentimentView](resp.Content)
	switch res.Kind {
	case models.ParseKindRaw:
		return rawOutput(resp, res.Raw), nil
	case models.ParseKindError:
		return nil, fmt.Errorf("sentiment: parse model output: %w", res.Err)
	}

	return &models.AgentOutput{
		Signal:     normalizeSignal(res.Value.Signal, "bullish", "bearish", "neutral"),
		Confidence: models.ClampConfidence(res.Value.Confidence),
		Reasoning:  res.Value.Reasoning,
		Provider:   resp.Provider,
		Model:      resp.Model,
	}, nil
}

var _ domsvc.Agent = (*Sentiment)(nil)
