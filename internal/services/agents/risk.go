package agents

import (
	"context"
	"fmt"

	"AlphaDesk/internal/domain/models"
	domsvc "AlphaDesk/internal/domain/service"
	applogger "AlphaDesk/pkg/logger"
)

const riskSystem = `You are the desk's risk officer. Estimate how dangerous it is to hold positions
right now (0 = calm, 100 = extreme). Set shouldHalt only when trading must stop immediately.`

const riskSchema = `{"riskScore":0-100,"level":"low|medium|high|critical","shouldHalt":bool,"warnings":["string"],"reasoning":"string"}`

type riskView struct {
	RiskScore  float64  `json:"riskScore"`
	Level      string   `json:"level"`
	ShouldHalt bool     `json:"shouldHalt"`
	Warnings   []string `json:"warnings"`
	Reasoning  string   `json:"reasoning"`
}

// Risk scores danger and owns the emergency halt. Its confidence is 100 - riskScore,
// so a calm market reads as a high-confidence contribution to the aggregate.
type Risk struct {
	analyst
	halt domsvc.HaltTrigger
	l    *applogger.Logger
}

func NewRisk(router domsvc.AIRouter, cfg Config, halt domsvc.HaltTrigger, l *applogger.Logger) *Risk {
	return &Risk{analyst: analyst{name: "Risk", router: router, cfg: cfg}, halt: halt, l: l}
}

func (r *Risk) Name() string { return r.name }

func (r *Risk) Analyze(ctx context.Context, actx *models.AgentContext) (*models.AgentOutput, error) {
	resp, err := r.ask(ctx, riskSystem, "Market snapshot:\n"+marketBrief(actx), riskSchema)
	if err != nil {
		return nil, err
	}

	res := models.ParseStructured[riskView](resp.Content)
	switch res.Kind {
	case models.ParseKindRaw:
		out := rawOutput(resp, res.Raw)
		out.Signal = string(models.RegimeMedium)
		return out, nil
	case models.ParseKindError:
		return nil, fmt.Errorf("risk: parse model output: %w", res.Err)
	}

	v := res.Value
	score := models.ClampConfidence(v.RiskScore)
	level := v.Level
	if level == "" {
		level = string(levelFor(score))
	}
	out := &models.AgentOutput{
		Signal:     string(models.RegimeFromSignal(normalizeSignal(level, "critical", "high", "medium", "low"))),
		Confidence: 100 - score,
		Reasoning:  v.Reasoning,
		Provider:   resp.Provider,
		Model:      resp.Model,
	}

	if v.ShouldHalt {
		reason := v.Reasoning
		if reason == "" {
			reason = fmt.Sprintf("risk score %d", score)
		}
		if _, err := r.halt.Trigger(ctx, domsvc.HaltRequest{
			Reason:    reason,
			Provider:  resp.Provider,
			RiskScore: score,
			Warnings:  v.Warnings,
		}); err != nil {
			r.l.Error("emergency halt trigger failed", applogger.Error(err))
		}
	}
	return out, nil
}

func levelFor(score int) models.Regime {
	switch {
	case score >= 85:
		return models.RegimeCritical
	case score >= 65:
		return models.RegimeHigh
	case score >= 40:
		return models.RegimeMedium
	}
	return models.RegimeLow
}

var _ domsvc.Agent = (*Risk)(nil)
