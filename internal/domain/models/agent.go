package models

import (
	"math"
	"sync"
	"time"
)

type AgentState string

const (
	AgentIdle    AgentState = "idle"
	AgentRunning AgentState = "running"
	AgentError   AgentState = "error"
)

// AgentDescriptor is the live bookkeeping of one scheduled agent.
// It is created once at startup and mutated on every tick.
type AgentDescriptor struct {
	mu sync.RWMutex

	Name     string
	Interval time.Duration

	status          AgentState
	lastRun         time.Time
	latencyMs       int64
	totalLatencyMs  int64
	runCount        int64
	errorCount      int64
	currentProvider ProviderID
	currentModel    string
}

// AgentSnapshot is a consistent copy of an AgentDescriptor.
type AgentSnapshot struct {
	Name            string        `json:"name"`
	Interval        time.Duration `json:"interval"`
	Status          AgentState    `json:"status"`
	LastRun         time.Time     `json:"lastRun"`
	LatencyMs       int64         `json:"latencyMs"`
	TotalLatencyMs  int64         `json:"totalLatencyMs"`
	RunCount        int64         `json:"runCount"`
	ErrorCount      int64         `json:"errorCount"`
	CurrentProvider ProviderID    `json:"currentProvider"`
	CurrentModel    string        `json:"currentModel"`
}

func NewAgentDescriptor(name string, interval time.Duration, sel ProviderSelection) *AgentDescriptor {
	return &AgentDescriptor{
		Name:            name,
		Interval:        interval,
		status:          AgentIdle,
		currentProvider: sel.Provider,
		currentModel:    sel.Model,
	}
}

func (d *AgentDescriptor) MarkRunning() {
	d.mu.Lock()
	d.status = AgentRunning
	d.mu.Unlock()
}

// MarkSuccess records a completed tick.
func (d *AgentDescriptor) MarkSuccess(at time.Time, latency time.Duration, provider ProviderID, model string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ms := latency.Milliseconds()
	d.status = AgentIdle
	d.lastRun = at
	d.latencyMs = ms
	d.totalLatencyMs += ms
	d.runCount++
	if provider != "" {
		d.currentProvider = provider
		d.currentModel = model
	}
}

// MarkFailure records a failed tick. LastRun is left untouched.
func (d *AgentDescriptor) MarkFailure() {
	d.mu.Lock()
	d.status = AgentError
	d.errorCount++
	d.mu.Unlock()
}

func (d *AgentDescriptor) Snapshot() AgentSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return AgentSnapshot{
		Name:            d.Name,
		Interval:        d.Interval,
		Status:          d.status,
		LastRun:         d.lastRun,
		LatencyMs:       d.latencyMs,
		TotalLatencyMs:  d.totalLatencyMs,
		RunCount:        d.runCount,
		ErrorCount:      d.errorCount,
		CurrentProvider: d.currentProvider,
		CurrentModel:    d.currentModel,
	}
}

// AverageLatencyMs is 0 when the agent never completed a tick.
func (s AgentSnapshot) AverageLatencyMs() int64 {
	if s.RunCount == 0 {
		return 0
	}
	return s.TotalLatencyMs / s.RunCount
}

const SignalError = "error"

// AgentOutput is what one successful (or synthetic failed) tick produces.
type AgentOutput struct {
	AgentName    string     `json:"agentName"`
	Signal       string     `json:"signal"`
	Confidence   int        `json:"confidence"` // 0..100
	Reasoning    string     `json:"reasoning"`
	TargetMarket string     `json:"targetMarket,omitempty"`
	Provider     ProviderID `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ClampConfidence rounds and bounds any score to [0,100].
func ClampConfidence(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(math.Round(v))
}

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelAlert LogLevel = "alert"
)

// AgentLogEntry is the structured event emitted after every tick.
type AgentLogEntry struct {
	ID         string     `json:"id"`
	AgentName  string     `json:"agentName"`
	Level      LogLevel   `json:"level"`
	Signal     string     `json:"signal"`
	Confidence int        `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Provider   ProviderID `json:"provider,omitempty"`
	Model      string     `json:"model,omitempty"`
	LatencyMs  int64      `json:"latencyMs"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// PricePoint is a recent price observation for one symbol.
type PricePoint struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change24h"`
	Timestamp time.Time `json:"timestamp"`
}

// WhaleAlert is a large on-chain or exchange transfer.
type WhaleAlert struct {
	Symbol    string    `json:"symbol"`
	AmountUSD float64   `json:"amountUsd"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentContext is the read-only snapshot shared by every agent tick.
type AgentContext struct {
	Prices    []PricePoint   `json:"prices"`
	Whales    []WhaleAlert   `json:"whales"`
	LastAlpha *AlphaSnapshot `json:"lastAlpha,omitempty"`
	BuiltAt   time.Time      `json:"builtAt"`
}

// EmptyContext is the neutral placeholder used when a tick runs without one.
func EmptyContext() *AgentContext {
	return &AgentContext{
		Prices: []PricePoint{},
		Whales: []WhaleAlert{},
	}
}
