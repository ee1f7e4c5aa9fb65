package domain

// CompletionConfig holds chat-completion sampling settings, not exposed to clients.
type CompletionConfig struct {
	Model       string
	Temperature float32
	TopP        float32
	Stream      bool
}

// DefaultCompletionConfig returns the defaults used for photo matching.
// Low temperature keeps the model answering with a bare identifier.
func DefaultCompletionConfig() CompletionConfig {
	return CompletionConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		TopP:        1,
		Stream:      true,
	}
}
