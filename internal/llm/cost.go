package llm

import "strings"

// TokenPrice is USD per token.
type TokenPrice struct {
	Prompt     float64
	Completion float64
}

// modelPrices carries per-token prices for the metered OpenAI models.
// Models absent from the table cost zero (local serving, or providers whose
// billing is tracked elsewhere).
var modelPrices = map[string]TokenPrice{
	"gpt-4o":     {Prompt: 5.0 / 1e6, Completion: 15.0 / 1e6},
	"o1-preview": {Prompt: 15.0 / 1e6, Completion: 60.0 / 1e6},
	"o1":         {Prompt: 15.0 / 1e6, Completion: 60.0 / 1e6},
}

// EstimateCost returns the dollar cost of a completion, or 0 for unmetered
// models.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	price, ok := modelPrices[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		return 0
	}
	return float64(inputTokens)*price.Prompt + float64(outputTokens)*price.Completion
}
