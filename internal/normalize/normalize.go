// Package normalize removes structurally empty markup and redundant whitespace
// from e-book text before it is sent for correction.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/bookfix/internal/markup"
)

// Options selects which elements count as inline and block level.
type Options struct {
	// InlineTags are replaced by a single space when they hold no text.
	InlineTags []string
	// BlockTags are deleted outright when they hold no text.
	BlockTags []string
}

// DefaultOptions matches calibre-style e-book exports.
func DefaultOptions() Options {
	return Options{
		InlineTags: []string{"i"},
		BlockTags:  []string{"p"},
	}
}

// Elements that carry visible content without any text. A paragraph wrapping
// an image is not empty.
var embeddedTags = []string{"img", "svg", "picture", "video", "audio", "object", "embed", "iframe", "canvas", "math"}

var (
	tagNameRe    = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	// Any Unicode whitespace, NBSP and em space included.
	whitespaceRe = regexp.MustCompile(`[\s\p{Z}\x{85}\x{1c}-\x{1f}]{2,}`)
)

const classAttr = `\s+class\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'>]+)`

type rewrite struct {
	re   *regexp.Regexp
	with string
}

// Normalizer is safe for concurrent use; it holds no mutable state.
type Normalizer struct {
	parser   markup.Parser
	inline   []string
	block    []string
	rewrites []rewrite
}

// New builds a Normalizer backed by parser.
func New(parser markup.Parser, opts Options) (*Normalizer, error) {
	n := &Normalizer{parser: parser}

	for _, tag := range opts.InlineTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if !tagNameRe.MatchString(tag) {
			return nil, fmt.Errorf("invalid inline tag %q", tag)
		}
		q := regexp.QuoteMeta(tag)
		n.inline = append(n.inline, tag)
		n.rewrites = append(n.rewrites,
			// "</i> <i class=...>" joins two runs of the same inline style.
			rewrite{regexp.MustCompile(`(?i)</` + q + `\s*>\s+<` + q + `(?:` + classAttr + `)?\s*>`), " "},
			// Class variants collapse to the bare tag.
			rewrite{regexp.MustCompile(`(?i)<` + q + classAttr + `\s*>`), "<" + tag + ">"},
		)
	}
	for _, tag := range opts.BlockTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if !tagNameRe.MatchString(tag) {
			return nil, fmt.Errorf("invalid block tag %q", tag)
		}
		n.block = append(n.block, tag)
	}

	return n, nil
}

// Normalize applies the cleanup pass until the text stops changing.
//
// Every rewrite in a pass makes the text strictly shorter and an unchanged
// tree renders back to its input, so the loop ends and its result is a fixed
// point: Normalize(Normalize(x)) == Normalize(x).
//
// Errors wrap markup.ErrFormat when the text cannot be parsed.
func (n *Normalizer) Normalize(text string) (string, error) {
	for {
		out, err := n.pass(text)
		if err != nil {
			return "", err
		}
		if out == text {
			return out, nil
		}
		text = out
	}
}

func (n *Normalizer) pass(text string) (string, error) {
	for _, rw := range n.rewrites {
		text = rw.re.ReplaceAllLiteralString(text, rw.with)
	}

	doc, err := n.parser.Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}

	for _, tag := range n.inline {
		for _, el := range doc.FindAll(tag) {
			if isEmpty(el) {
				el.ReplaceWithText(" ")
			}
		}
	}
	for _, tag := range n.block {
		for _, el := range doc.FindAll(tag) {
			if isEmpty(el) {
				el.Remove()
			}
		}
	}

	return CollapseWhitespace(doc.Render()), nil
}

func isEmpty(el markup.Element) bool {
	if strings.TrimSpace(el.Text()) != "" {
		return false
	}
	for _, tag := range embeddedTags {
		if len(el.FindAll(tag)) > 0 {
			return false
		}
	}
	return true
}

// CollapseWhitespace turns every run of two or more Unicode whitespace
// characters into one space and trims the ends. It is the plain-text fallback for input that
// cannot be parsed as markup.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllLiteralString(text, " "))
}
