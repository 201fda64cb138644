package markup

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// HTMLParser builds element trees with the x/net/html tokenizer.
//
// Unlike html.Parse it does not repair the document: unmatched end tags,
// comments, doctypes and unclosed elements are kept exactly as written, so
// rendering an unmodified tree returns the input byte for byte. Segments cut
// out of the middle of a book rely on this.
type HTMLParser struct{}

type nodeKind int

const (
	elementNode nodeKind = iota
	textNode
	rawNode // comments, doctypes, stray end tags
)

type node struct {
	kind     nodeKind
	tag      string
	open     string // start tag, or the whole token for text and raw nodes
	close    string // end tag; empty when the element was never closed
	parent   *node
	children []*node
}

// Void elements never have children, with or without a trailing slash.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

func (p HTMLParser) Parse(text string) (Document, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: input is not valid UTF-8", ErrFormat)
	}

	root := &node{kind: elementNode}
	stack := []*node{root}
	z := html.NewTokenizer(strings.NewReader(text))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrFormat, z.Err())
		}

		// Copy before TagName, which lower-cases the token buffer in place.
		raw := string(z.Raw())
		top := stack[len(stack)-1]

		switch tt {
		case html.TextToken:
			top.appendChild(&node{kind: textNode, open: raw})

		case html.StartTagToken:
			name, _ := z.TagName()
			n := &node{kind: elementNode, tag: string(name), open: raw}
			top.appendChild(n)
			if !voidElements[n.tag] {
				stack = append(stack, n)
			}

		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			top.appendChild(&node{kind: elementNode, tag: string(name), open: raw})

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			i := len(stack) - 1
			for i > 0 && stack[i].tag != tag {
				i--
			}
			if i == 0 {
				// Nothing open to close: keep the tag as literal markup.
				top.appendChild(&node{kind: rawNode, open: raw})
				continue
			}
			// Elements opened after the match stay unclosed.
			stack[i].close = raw
			stack = stack[:i]

		default:
			top.appendChild(&node{kind: rawNode, open: raw})
		}
	}

	return &htmlDocument{root: root}, nil
}

type htmlDocument struct {
	root *node
}

func (d *htmlDocument) FindAll(tag string) []Element {
	return d.root.FindAll(tag)
}

func (d *htmlDocument) Render() string {
	var sb strings.Builder
	for _, c := range d.root.children {
		c.render(&sb)
	}
	return sb.String()
}

func (n *node) appendChild(c *node) {
	c.parent = n
	n.children = append(n.children, c)
}

func (n *node) render(sb *strings.Builder) {
	sb.WriteString(n.open)
	for _, c := range n.children {
		c.render(sb)
	}
	sb.WriteString(n.close)
}

func (n *node) Tag() string {
	return n.tag
}

func (n *node) Text() string {
	var sb strings.Builder
	var walk func(*node)
	walk = func(n *node) {
		if n.kind == textNode {
			sb.WriteString(html.UnescapeString(n.open))
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func (n *node) FindAll(tag string) []Element {
	tag = strings.ToLower(tag)
	var out []Element
	var walk func(*node)
	walk = func(n *node) {
		for _, c := range n.children {
			if c.kind == elementNode && c.tag == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func (n *node) ReplaceWithText(text string) {
	for _, c := range n.children {
		c.parent = nil
	}
	n.kind = textNode
	n.tag = ""
	n.open = html.EscapeString(text)
	n.close = ""
	n.children = nil
}

func (n *node) Remove() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}
