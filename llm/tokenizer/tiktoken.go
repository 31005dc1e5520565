package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/virtualab/virtualab/llm"
)

// Tiktoken wraps tiktoken-go for OpenAI-family models. Encoding data is
// loaded lazily on first use.
type Tiktoken struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// NewTiktoken returns a tokenizer for the given model, or an error when
// the model is not an OpenAI-family model we know an encoding for.
func NewTiktoken(model string) (*Tiktoken, error) {
	base := model
	if i := strings.IndexByte(model, '/'); i >= 0 {
		base = model[i+1:]
	}
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(base, prefix) {
			return &Tiktoken{model: model, encoding: enc}, nil
		}
	}
	return nil, fmt.Errorf("no tiktoken encoding for model %q", model)
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *Tiktoken) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *Tiktoken) CountMessages(messages []llm.Message) (int, error) {
	total := 0
	for _, msg := range messages {
		n, err := t.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		total += n + 4
	}
	return total + 3, nil
}

func (t *Tiktoken) Name() string { return "tiktoken/" + t.encoding }
