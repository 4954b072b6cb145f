package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"AlphaDesk/internal/domain/models"
)

func TestCatalog_Cheapest(t *testing.T) {
	c := DefaultCatalog()
	cases := map[models.ProviderID]string{
		models.ProviderOpenAI:    "gpt-4o-mini",
		models.ProviderAnthropic: "claude-3-5-haiku-20241022",
		models.ProviderGemini:    "gemini-1.5-flash",
		models.ProviderDeepSeek:  "deepseek-chat",
	}
	for p, want := range cases {
		got, ok := c.Cheapest(p)
		assert.True(t, ok)
		assert.Equal(t, want, got, p)
	}
	_, ok := c.Cheapest("mistral")
	assert.False(t, ok)
}

func TestCatalog_Validate(t *testing.T) {
	c := DefaultCatalog()
	assert.NoError(t, c.Validate(models.ProviderSelection{Provider: models.ProviderDeepSeek, Model: "deepseek-reasoner"}))
	assert.Error(t, c.Validate(models.ProviderSelection{Provider: models.ProviderDeepSeek, Model: "gpt-4o"}))
	assert.Error(t, c.Validate(models.ProviderSelection{Provider: "mistral", Model: "large"}))
}

func TestCatalog_Cost(t *testing.T) {
	c := DefaultCatalog()
	sel := models.ProviderSelection{Provider: models.ProviderAnthropic, Model: "claude-3-5-sonnet-20241022"}
	assert.InDelta(t, 0.0105, c.Cost(sel, 1000, 500), 1e-12)
	assert.Zero(t, c.Cost(models.ProviderSelection{Provider: "x", Model: "y"}, 1000, 1000))
}

func TestKeySealRoundTrip(t *testing.T) {
	secret, err := ParseKeySecret("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	assert.NoError(t, err)

	sealed, err := SealKey(secret, "sk-live")
	assert.NoError(t, err)
	plain, err := OpenKey(secret, sealed)
	assert.NoError(t, err)
	assert.Equal(t, "sk-live", plain)

	_, err = OpenKey(&[32]byte{9}, sealed)
	assert.Error(t, err)

	none, err := ParseKeySecret("")
	assert.NoError(t, err)
	assert.Nil(t, none)
}
