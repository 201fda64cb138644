package chunker

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidArgument is returned for a non-positive chunk budget.
var ErrInvalidArgument = errors.New("invalid argument")

// Strategy decides where a chunk may end.
type Strategy string

const (
	// StrategyRawCharacter cuts every MaxUnitSize characters, even inside a
	// tag or a word. Kept as the default for compatibility with earlier output.
	StrategyRawCharacter Strategy = "raw-character"
	// StrategyStructureAware cuts at the last whitespace or markup boundary
	// inside the budget, falling back to a raw cut when there is none.
	StrategyStructureAware Strategy = "structure-aware"
)

// ParseStrategy maps a configuration value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRawCharacter, StrategyStructureAware:
		return Strategy(s), nil
	case "":
		return StrategyRawCharacter, nil
	}
	return "", fmt.Errorf("%w: unknown chunk strategy %q", ErrInvalidArgument, s)
}

// Config controls chunking behavior.
type Config struct {
	MaxUnitSize int // Maximum chunk length in characters (Unicode code points).
	Strategy    Strategy
}

// DefaultConfig returns the budget used for the correction service.
func DefaultConfig() Config {
	return Config{
		MaxUnitSize: 40000,
		Strategy:    StrategyRawCharacter,
	}
}

// Chunk is a contiguous slice of the input text.
type Chunk struct {
	Index int // 1-based position within the text.
	Text  string
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Text)
}

// Split partitions text into chunks of at most cfg.MaxUnitSize characters.
// Concatenating the chunk texts in order yields text exactly. Empty text
// yields no chunks.
func Split(text string, cfg Config) ([]Chunk, error) {
	if cfg.MaxUnitSize <= 0 {
		return nil, fmt.Errorf("%w: max unit size must be positive, got %d", ErrInvalidArgument, cfg.MaxUnitSize)
	}
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	for start := 0; start < len(text); {
		end := windowEnd(text, start, cfg.MaxUnitSize)
		if end < len(text) && strategy == StrategyStructureAware {
			if cut := boundaryCut(text, start, end); cut > start {
				end = cut
			}
		}
		chunks = append(chunks, Chunk{Index: len(chunks) + 1, Text: text[start:end]})
		start = end
	}
	return chunks, nil
}

// windowEnd returns the byte offset just past max runes from start.
func windowEnd(text string, start, max int) int {
	i := start
	for n := 0; n < max && i < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return i
}

// boundaryCut finds the last offset in (start, end] that lies outside a tag
// and sits after whitespace, after '>', or before '<'. Returns start when the
// window has no such offset.
func boundaryCut(text string, start, end int) int {
	cut := start
	inTag := false
	for i := start; i < end; {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == '<':
			if !inTag && i > start {
				cut = i
			}
			inTag = true
		case r == '>':
			inTag = false
			cut = i + size
		case unicode.IsSpace(r) && !inTag:
			cut = i + size
		}
		i += size
	}
	return cut
}
