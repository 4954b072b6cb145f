package models

import "time"

// UsageRecord is written once per provider attempt, successful or not.
type UsageRecord struct {
	ID           string     `json:"id"`
	Provider     ProviderID `json:"provider"`
	Model        string     `json:"model"`
	UserID       string     `json:"userId,omitempty"`
	AgentName    string     `json:"agentName,omitempty"`
	TokensInput  int        `json:"tokensInput"`
	TokensOutput int        `json:"tokensOutput"`
	LatencyMs    int64      `json:"latencyMs"`
	CostUSD      float64    `json:"costUsd"`
	Success      bool       `json:"success"`
	ErrorCode    string     `json:"errorCode,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// FallbackEvent notes that a call was served by a provider other than the requested one.
type FallbackEvent struct {
	ID        string            `json:"id"`
	Requested ProviderSelection `json:"requested"`
	Served    ProviderSelection `json:"served"`
	AgentName string            `json:"agentName,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	Attempt   int               `json:"attempt"`
	CreatedAt time.Time         `json:"createdAt"`
}
