package models

import "strings"

// Provider names inferred from model identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderUnknown   = "unknown"
)

// InferProvider guesses the provider from a model name by substring match.
func InferProvider(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "gpt"):
		return ProviderOpenAI
	case strings.Contains(lower, "claude"):
		return ProviderAnthropic
	case strings.Contains(lower, "gemini"):
		return ProviderGoogle
	default:
		return ProviderUnknown
	}
}
