// pkg/config/memory.go
package config

type MemoryConfig struct {
	// MaxTokens is the conversation log eviction budget
	MaxTokens int
	// Encoding names the tiktoken encoding used for exact counting; when it
	// cannot be initialized the store falls back to a character estimate
	Encoding string
}

type SearchConfig struct {
	// APIBaseURL points at the platform API that backs the search tool
	APIBaseURL string
	Enabled    bool
}

func loadMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxTokens: getEnvInt("MEMORY_MAX_TOKENS", 2000),
		Encoding:  getEnv("MEMORY_ENCODING", "cl100k_base"),
	}
}

func loadSearchConfig() SearchConfig {
	return SearchConfig{
		APIBaseURL: getEnv("SEARCH_API_BASE_URL", "http://api:8000"),
		Enabled:    getEnvBool("SEARCH_TOOL_ENABLED", true),
	}
}
