// Package markup defines the element-tree capability the normalizer needs and
// an HTML backend for it.
package markup

import "errors"

// ErrFormat is returned when text cannot be parsed as markup.
var ErrFormat = errors.New("markup format error")

// Parser turns markup text into a mutable element tree.
type Parser interface {
	Parse(text string) (Document, error)
}

// Document is a parsed element tree.
type Document interface {
	// FindAll returns every element with the given tag name in document order.
	FindAll(tag string) []Element
	// Render serializes the tree back to text.
	Render() string
}

// Element is a single node of a Document.
type Element interface {
	Tag() string
	// Text returns the visible text of the element and its descendants,
	// with character references decoded.
	Text() string
	// FindAll returns descendant elements with the given tag name.
	FindAll(tag string) []Element
	// ReplaceWithText swaps the element, children included, for literal text.
	ReplaceWithText(text string)
	// Remove detaches the element and its children from the tree.
	Remove()
}
