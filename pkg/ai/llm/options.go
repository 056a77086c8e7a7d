package llm

// ChatOptions contains options for generating chat completions
type ChatOptions struct {
	Model               string   // Model name/identifier
	Temperature         float32  // Controls randomness (0.0 to 1.0)
	TopP                float32  // Controls diversity (0.0 to 1.0)
	MaxTokens           int      // Maximum number of tokens to generate (legacy)
	MaxCompletionTokens int      // Maximum completion tokens (preferred for new models)
	Stop                []string // Stop sequences
	Tools               []Tool   // Available tools
	ToolChoice          any      // Force specific tool choice ("auto", "none", "required")
	Seed                int64    // Random seed for deterministic results
	User                string   // Identifier representing end-user
}

// Option is a function type to modify ChatOptions
type Option func(*ChatOptions)

// DefaultOptions returns the zero-value option set
func DefaultOptions() *ChatOptions {
	return &ChatOptions{}
}

// WithModel sets the model to use
func WithModel(model string) Option {
	return func(o *ChatOptions) {
		o.Model = model
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(temp float32) Option {
	return func(o *ChatOptions) {
		o.Temperature = temp
	}
}

// WithTopP sets nucleus sampling parameter
func WithTopP(topP float32) Option {
	return func(o *ChatOptions) {
		o.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate (legacy)
func WithMaxTokens(tokens int) Option {
	return func(o *ChatOptions) {
		o.MaxTokens = tokens
	}
}

// WithMaxCompletionTokens sets the maximum completion tokens (preferred)
func WithMaxCompletionTokens(tokens int) Option {
	return func(o *ChatOptions) {
		o.MaxCompletionTokens = tokens
	}
}

// WithStop sets sequences where the API will stop generating further tokens
func WithStop(stop []string) Option {
	return func(o *ChatOptions) {
		o.Stop = stop
	}
}

// WithTools sets the available tools
func WithTools(tools []Tool) Option {
	return func(o *ChatOptions) {
		o.Tools = tools
	}
}

// WithToolChoice forces a specific tool choice
func WithToolChoice(toolChoice any) Option {
	return func(o *ChatOptions) {
		o.ToolChoice = toolChoice
	}
}

// WithSeed sets the random seed
func WithSeed(seed int64) Option {
	return func(o *ChatOptions) {
		o.Seed = seed
	}
}

// WithUser sets the end-user identifier
func WithUser(user string) Option {
	return func(o *ChatOptions) {
		o.User = user
	}
}
