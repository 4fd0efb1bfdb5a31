package providers

import "strings"

// ModelFeatures describes the wire-format quirks of one model family: which
// max-tokens parameter name it expects, whether it accepts a temperature
// value at all, whether it accepts image attachments, and its context
// window. Generalized from a Python original's model-family special case
// into a prefix-matched table, in the spirit of a cost-table resolver that
// tries an exact match before falling back to prefix matching.
type ModelFeatures struct {
	MaxTokensParam string // "max_tokens" or "max_completion_tokens"
	SupportsTemp   bool
	SupportsVision bool
	MaxContext     int
}

var modelFeatureTable = []struct {
	prefix   string
	features ModelFeatures
}{
	{"gpt-5-pro", ModelFeatures{MaxTokensParam: "max_completion_tokens", SupportsTemp: false, SupportsVision: true, MaxContext: 128000}},
	{"gpt-5-mini", ModelFeatures{MaxTokensParam: "max_completion_tokens", SupportsTemp: true, SupportsVision: true, MaxContext: 128000}},
	{"gpt-5-chat-latest", ModelFeatures{MaxTokensParam: "max_completion_tokens", SupportsTemp: true, SupportsVision: true, MaxContext: 128000}},
	{"gpt-5-nano", ModelFeatures{MaxTokensParam: "max_completion_tokens", SupportsTemp: true, SupportsVision: false, MaxContext: 32000}},
	{"gpt-4-turbo", ModelFeatures{MaxTokensParam: "max_tokens", SupportsTemp: true, SupportsVision: true, MaxContext: 128000}},
	{"gpt-4", ModelFeatures{MaxTokensParam: "max_tokens", SupportsTemp: true, SupportsVision: false, MaxContext: 8192}},
	{"gpt-3.5-turbo", ModelFeatures{MaxTokensParam: "max_tokens", SupportsTemp: true, SupportsVision: false, MaxContext: 16385}},
	{"claude-", ModelFeatures{MaxTokensParam: "max_tokens", SupportsTemp: true, SupportsVision: true, MaxContext: 200000}},
}

var defaultModelFeatures = ModelFeatures{
	MaxTokensParam: "max_tokens",
	SupportsTemp:   true,
	SupportsVision: false,
	MaxContext:     8192,
}

// FeaturesForModel resolves a model name to its feature set by longest
// matching prefix, falling back to defaultModelFeatures when nothing
// matches.
func FeaturesForModel(model string) ModelFeatures {
	best := -1
	result := defaultModelFeatures
	for _, entry := range modelFeatureTable {
		if strings.HasPrefix(model, entry.prefix) && len(entry.prefix) > best {
			best = len(entry.prefix)
			result = entry.features
		}
	}
	return result
}

// ValidateModelParams clamps requested max tokens to half of the model's
// max context window, a safety margin against starving the response of
// room to reason plus answer within one context.
func ValidateModelParams(model string, maxTokens int) int {
	features := FeaturesForModel(model)
	ceiling := features.MaxContext / 2
	if maxTokens <= 0 || maxTokens > ceiling {
		return ceiling
	}
	return maxTokens
}
