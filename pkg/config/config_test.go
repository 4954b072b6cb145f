package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FillsDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"), false)
	require.NoError(t, err)

	assert.Equal(t, "memory", c.Storage.Type)
	assert.Equal(t, "memory", c.Cache.Type)
	assert.Equal(t, 15*time.Second, c.Aggregator.Interval)
	assert.Equal(t, 60*time.Second, c.Orchestrator.HealthInterval)
	assert.Equal(t, 5*time.Minute, c.Agents.Fundamentalist.Interval)
	assert.Equal(t, 2*time.Minute, c.Agents.Sentiment.Interval)
	assert.Equal(t, time.Minute, c.Agents.Risk.Interval)
	assert.Equal(t, "openai", c.Agents.Risk.Provider)
	assert.Equal(t, "gpt-4o-mini", c.Agents.Risk.Model)
	assert.False(t, c.Router.DisableFallback)
}

func TestParse_EnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("STORAGE_TYPE", "clickhouse")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	c, err := Parse([]byte("environment: test\nproviders:\n  openai:\n    api_key: sk-file\n"), true)
	require.NoError(t, err)

	assert.Equal(t, "sk-env", c.Providers.OpenAI.APIKey)
	assert.Equal(t, "clickhouse", c.Storage.Type)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
}

func TestParse_RejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"storage type", "storage:\n  type: postgres\n"},
		{"agent provider", "agents:\n  risk:\n    provider: mistral\n    model: x\n"},
		{"non-openai model missing", "agents:\n  sentiment:\n    provider: anthropic\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n  brokers: []\n"},
		{"bad key secret", "crypto:\n  key_secret: nothex\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw), false)
			assert.Error(t, err)
		})
	}
}

func TestProvidersConfig_Provider(t *testing.T) {
	p := ProvidersConfig{Gemini: ProviderConfig{BaseURL: "https://g"}}
	got, ok := p.Provider("gemini")
	require.True(t, ok)
	assert.Equal(t, "https://g", got.BaseURL)

	_, ok = p.Provider("mistral")
	assert.False(t, ok)
}
