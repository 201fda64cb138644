// Package tokens estimates how many model tokens a text span costs. Counts are
// diagnostic: chunk budgets are measured in characters, not tokens.
package tokens

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator returns the approximate token cost of text.
type Estimator interface {
	Estimate(text string) (int, error)
	Name() string
}

// Tiktoken counts tokens with the BPE codec of an OpenAI model.
type Tiktoken struct {
	codec tokenizer.Codec
	model string
}

// NewTiktoken selects the codec for model. Unknown models fall back to
// cl100k_base, which covers gpt-3.5-turbo and gpt-4.
func NewTiktoken(model string) (*Tiktoken, error) {
	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, fmt.Errorf("load fallback tokenizer: %w", err)
		}
	}
	return &Tiktoken{codec: codec, model: model}, nil
}

func (t *Tiktoken) Estimate(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode text: %w", err)
	}
	return len(ids), nil
}

func (t *Tiktoken) Name() string {
	return "tiktoken:" + t.model
}

// Heuristic gives a rough token count from the word count.
// This is intentionally simple; it only backs up Tiktoken.
type Heuristic struct{}

func (Heuristic) Estimate(text string) (int, error) {
	// Roughly 0.75 words per token for English text.
	words := len(strings.Fields(text))
	if words == 0 {
		return 0, nil
	}
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens, nil
}

func (Heuristic) Name() string {
	return "heuristic"
}

// ForModel returns a Tiktoken estimator for model, or Heuristic when no codec
// can be loaded.
func ForModel(model string) Estimator {
	if t, err := NewTiktoken(model); err == nil {
		return t
	}
	return Heuristic{}
}
