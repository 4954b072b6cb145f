package models

import "time"

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

type Regime string

const (
	RegimeCritical Regime = "critical"
	RegimeHigh     Regime = "high"
	RegimeMedium   Regime = "medium"
	RegimeLow      Regime = "low"
)

// RegimeFromSignal maps a risk signal onto a regime, defaulting to low.
func RegimeFromSignal(signal string) Regime {
	switch Regime(signal) {
	case RegimeCritical, RegimeHigh, RegimeMedium:
		return Regime(signal)
	}
	return RegimeLow
}

const AlphaHistoryLimit = 20

type HistoryPoint struct {
	Confidence int       `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type SourceScore struct {
	Score    int        `json:"score"`
	Provider ProviderID `json:"provider,omitempty"`
	Model    string     `json:"model,omitempty"`
}

type AlphaBreakdown struct {
	Fundamental SourceScore `json:"fundamental"`
	Sentiment   SourceScore `json:"sentiment"`
	Risk        SourceScore `json:"risk"`
}

// AlphaSnapshot is the consolidated score published each aggregation cycle.
type AlphaSnapshot struct {
	ID         string         `json:"id"`
	Confidence int            `json:"confidence"`
	Trend      Trend          `json:"trend"`
	History    []HistoryPoint `json:"history"`
	Breakdown  AlphaBreakdown `json:"breakdown"`
	Regime     Regime         `json:"regime"`
	RiskScore  int            `json:"riskScore"`
	CreatedAt  time.Time      `json:"createdAt"`
}
