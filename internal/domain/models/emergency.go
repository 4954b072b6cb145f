package models

import "time"

type EmergencyMetadata struct {
	Provider  ProviderID `json:"provider,omitempty"`
	RiskScore int        `json:"riskScore"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// EmergencyEvent records a Normal to Halted transition. Resolution happens outside the core.
type EmergencyEvent struct {
	ID             string            `json:"id"`
	Reason         string            `json:"reason"`
	TradesAffected int               `json:"tradesAffected"`
	Metadata       EmergencyMetadata `json:"metadata"`
	Resolved       bool              `json:"resolved"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// HaltMessage is pushed to real-time clients and the emergency channel.
type HaltMessage struct {
	Type      string    `json:"type"`
	EventID   string    `json:"eventId"`
	Reason    string    `json:"reason"`
	RiskScore int       `json:"riskScore"`
	Timestamp time.Time `json:"timestamp"`
}
