package models

import "fmt"

type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
	ProviderDeepSeek  ProviderID = "deepseek"
)

// ProviderPriority is the fixed fallback order.
var ProviderPriority = []ProviderID{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGemini,
	ProviderDeepSeek,
}

func ParseProviderID(s string) (ProviderID, error) {
	for _, p := range ProviderPriority {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// ProviderSelection is a (provider, model) pair for a single AI call.
type ProviderSelection struct {
	Provider ProviderID `json:"provider"`
	Model    string     `json:"model"`
}

func (s ProviderSelection) String() string {
	return string(s.Provider) + ":" + s.Model
}

type AIRequest struct {
	SystemPrompt   string `json:"systemPrompt"`
	UserPrompt     string `json:"userPrompt"`
	ResponseSchema string `json:"responseSchema,omitempty"`
	MaxTokens      int    `json:"maxTokens,omitempty"`
	AgentName      string `json:"agentName,omitempty"`
}

type AIResponse struct {
	Provider     ProviderID `json:"provider"`
	Model        string     `json:"model"`
	TokensInput  int        `json:"tokensInput"`
	TokensOutput int        `json:"tokensOutput"`
	LatencyMs    int64      `json:"latencyMs"`
	CostUSD      float64    `json:"costUsd"`
	Content      string     `json:"content"`
}
