package agents

import (
	"context"
	"fmt"

	"AlphaDesk/internal/domain/models"
	domsvc "AlphaDesk/internal/domain/service"
)

const fundamentalistSystem = `You are a crypto fundamentals analyst. Judge the medium-term direction
of the market from price action, on-chain flows and the previous consolidated signal.`

const fundamentalistSchema = `{"signal":"bullish|bearish|neutral","confidence":0-100,"reasoning":"string","targetMarket":"string"}`

type fundamentalView struct {
	Signal       string  `json:"signal"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	TargetMarket string  `json:"targetMarket"`
}

type Fundamentalist struct{ analyst }

func NewFundamentalist(router domsvc.AIRouter, cfg Config) *Fundamentalist {
	return &Fundamentalist{analyst{name: "Fundamentalist", router: router, cfg: cfg}}
}

func (f *Fundamentalist) Name() string { return f.name }

func (f *Fundamentalist) Analyze(ctx context.Context, actx *models.AgentContext) (*models.AgentOutput, error) {
	resp, err := f.ask(ctx, fundamentalistSystem, "Market snapshot:\n"+marketBrief(actx), fundamentalistSchema)
	if err != nil {
		return nil, err
	}

	res := models.ParseStructured[fundamentalView](resp.Content)
	switch res.Kind {
	case models.ParseKindRaw:
		return rawOutput(resp, res.Raw), nil
	case models.ParseKindError:
		return nil, fmt.Errorf("fundamentalist: parse model output: %w", res.Err)
	}

	v := res.Value
	return &models.AgentOutput{
		Signal:       normalizeSignal(v.Signal, "bullish", "bearish", "neutral"),
		Confidence:   models.ClampConfidence(v.Confidence),
		Reasoning:    v.Reasoning,
		TargetMarket: v.TargetMarket,
		Provider:     resp.Provider,
		Model:        resp.Model,
	}, nil
}

var _ domsvc.Agent = (*Fundamentalist)(nil)
