// Package tokenizer provides token counting used for telemetry around
// model calls and tool result truncation. Counting is best-effort:
// callers must never treat a counting failure as fatal.
package tokenizer

import "github.com/virtualab/virtualab/llm"

// Tokenizer counts tokens for a given model family.
type Tokenizer interface {
	CountTokens(text string) (int, error)
	CountMessages(messages []llm.Message) (int, error)
	Name() string
}

// ForModel returns a tiktoken-backed tokenizer for OpenAI-family models
// and the rune-heuristic estimator for everything else.
func ForModel(model string) Tokenizer {
	if t, err := NewTiktoken(model); err == nil {
		return t
	}
	return NewEstimator()
}
