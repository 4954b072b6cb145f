package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
)

// ModelPrice is USD per one million tokens.
type ModelPrice struct {
	Model  string
	Input  decimal.Decimal
	Output decimal.Decimal
}

func price(model, in, out string) ModelPrice {
	return ModelPrice{Model: model, Input: decimal.RequireFromString(in), Output: decimal.RequireFromString(out)}
}

// Catalog is the read-only list of allowed models and their prices per provider.
type Catalog struct {
	models map[models.ProviderID][]ModelPrice
}

var perMillion = decimal.NewFromInt(1_000_000)

func DefaultCatalog() *Catalog {
	return NewCatalog(map[models.ProviderID][]ModelPrice{
		models.ProviderOpenAI: {
			price("gpt-4o", "2.50", "10.00"),
			price("gpt-4o-mini", "0.15", "0.60"),
		},
		models.ProviderAnthropic: {
			price("claude-3-5-sonnet-20241022", "3.00", "15.00"),
			price("claude-3-5-haiku-20241022", "0.80", "4.00"),
		},
		models.ProviderGemini: {
			price("gemini-1.5-pro", "1.25", "5.00"),
			price("gemini-1.5-flash", "0.075", "0.30"),
		},
		models.ProviderDeepSeek: {
			price("deepseek-chat", "0.27", "1.10"),
			price("deepseek-reasoner", "0.55", "2.19"),
		},
	})
}

func NewCatalog(m map[models.ProviderID][]ModelPrice) *Catalog {
	return &Catalog{models: m}
}

func (c *Catalog) lookup(sel models.ProviderSelection) (ModelPrice, bool) {
	for _, mp := range c.models[sel.Provider] {
		if mp.Model == sel.Model {
			return mp, true
		}
	}
	return ModelPrice{}, false
}

// Validate rejects a selection whose model is not listed for its provider.
func (c *Catalog) Validate(sel models.ProviderSelection) error {
	list, ok := c.models[sel.Provider]
	if !ok {
		return &errs.ValidationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", sel.Provider)}
	}
	for _, mp := range list {
		if mp.Model == sel.Model {
			return nil
		}
	}
	return &errs.ValidationError{Field: "model", Reason: fmt.Sprintf("%q is not offered by %s", sel.Model, sel.Provider)}
}

// Cheapest returns the model with the lowest combined input+output price.
func (c *Catalog) Cheapest(provider models.ProviderID) (string, bool) {
	list := c.models[provider]
	if len(list) == 0 {
		return "", false
	}
	best := list[0]
	for _, mp := range list[1:] {
		if mp.Input.Add(mp.Output).LessThan(best.Input.Add(best.Output)) {
			best = mp
		}
	}
	return best.Model, true
}

// Cost prices a call; unknown models cost zero.
func (c *Catalog) Cost(sel models.ProviderSelection, tokensIn, tokensOut int) float64 {
	mp, ok := c.lookup(sel)
	if !ok {
		return 0
	}
	total := mp.Input.Mul(decimal.NewFromInt(int64(tokensIn))).
		Add(mp.Output.Mul(decimal.NewFromInt(int64(tokensOut)))).
		Div(perMillion)
	f, _ := total.Round(8).Float64()
	return f
}

// Estimate is the worst-case cost of req: prompt length at ~4 chars per token
// plus the full output allowance.
func (c *Catalog) Estimate(sel models.ProviderSelection, req models.AIRequest) float64 {
	in := (len(req.SystemPrompt)+len(req.UserPrompt))/4 + 1
	return c.Cost(sel, in, req.MaxTokens)
}
