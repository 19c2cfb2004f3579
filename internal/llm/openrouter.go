package llm

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterProvider returns a chat provider pointed at OpenRouter. Model
// IDs are namespaced ("vendor/model") and used as given. Routed models do not
// all honour strict json_schema, so JSON object mode is requested and the
// schema is enforced locally.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenAIProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return newChatProvider(cfg.APIKey, baseURL, cfg.Model, false)
}
