package claude

import "strings"

// ModelPricing holds the per-token pricing for a model
type ModelPricing struct {
	Input  float64
	Output float64
}

// ModelPricingMap maps model families to their per-token pricing
var ModelPricingMap = map[string]ModelPricing{
	"claude-sonnet-4": {
		Input:  0.000003, // $3.00 per million tokens
		Output: 0.000015, // $15.00 per million tokens
	},
	"claude-opus-4": {
		Input:  0.000015, // $15.00 per million tokens
		Output: 0.000075, // $75.00 per million tokens
	},
	"claude-3-5-haiku": {
		Input:  0.0000008, // $0.80 per million tokens
		Output: 0.000004,  // $4.00 per million tokens
	},
}

// defaultPricing is Sonnet pricing, the model the generator defaults to
var defaultPricing = ModelPricingMap["claude-sonnet-4"]

// getModelPricing returns the pricing for a model by family prefix match
func getModelPricing(model string) ModelPricing {
	lowerModel := strings.ToLower(model)
	for family, pricing := range ModelPricingMap {
		if strings.HasPrefix(lowerModel, family) {
			return pricing
		}
	}
	return defaultPricing
}

// Cost computes the attributed dollar cost of a call from its token counts
func Cost(model string, inputTokens, outputTokens int) float64 {
	pricing := getModelPricing(model)
	return float64(inputTokens)*pricing.Input + float64(outputTokens)*pricing.Output
}
