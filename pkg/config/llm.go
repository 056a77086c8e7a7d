// pkg/config/llm.go
package config

type LLMConfig struct {
	APIKey              string
	BaseURL             string
	Model               string
	Temperature         float64
	MaxCompletionTokens int
	PromptFile          string
}

// Configured reports whether the external model endpoint can be reached at
// all. An unconfigured LLM does not prevent startup; the agent surfaces
// unavailability per request instead.
func (lc LLMConfig) Configured() bool {
	return lc.APIKey != ""
}

func loadLLMConfig() LLMConfig {
	return LLMConfig{
		APIKey:              getEnv("LLM_API_KEY", ""),
		BaseURL:             getEnv("LLM_BASE_URL", ""),
		Model:               getEnv("LLM_MODEL", "gpt-4o"),
		Temperature:         getEnvFloat("LLM_TEMPERATURE", 0.3),
		MaxCompletionTokens: getEnvInt("LLM_MAX_COMPLETION_TOKENS", 4096),
		PromptFile:          getEnv("AGENT_PROMPT_FILE", ""),
	}
}
