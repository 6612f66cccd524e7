package domain

import (
	"math"
	"unicode/utf8"
)

// modelPricesPerToken is the USD input price per token for the models
// the assistant may run against.
var modelPricesPerToken = map[string]float64{
	"gpt-5":       1.25 / 1_000_000,
	"gpt-5-mini":  0.25 / 1_000_000,
	"gpt-5-nano":  0.05 / 1_000_000,
	"gpt-4o":      5.00 / 1_000_000,
	"gpt-4o-mini": 0.60 / 1_000_000,
}

// EstimateTokens approximates the token count of text. Tokens average
// roughly four characters, so character count / 4 is close enough for
// bookkeeping without a tokenizer dependency.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Round(float64(utf8.RuneCountInString(text)) / 4))
}

// EstimateCost returns the approximate USD cost of sending text to the
// given model, rounded to three significant figures. Unknown models
// cost zero.
func EstimateCost(text, model string) float64 {
	price, ok := modelPricesPerToken[model]
	if !ok {
		return 0
	}
	cost := float64(EstimateTokens(text)) * price
	if cost == 0 {
		return 0
	}
	digits := math.Ceil(math.Log10(math.Abs(cost)))
	scale := math.Pow(10, 3-digits)
	return math.Round(cost*scale) / scale
}
