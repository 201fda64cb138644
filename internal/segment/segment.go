// Package segment splits a marked-up document into ordered parts that each end
// at an embedded marker tag.
package segment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidTag is returned for marker tag names that cannot form a pattern.
var ErrInvalidTag = errors.New("invalid marker tag")

// Segmenter cuts documents after every marker tag. A marker is "<", the tag
// name, any run of characters other than ">", then ">".
type Segmenter struct {
	tag string
	re  *regexp.Regexp
}

// New builds a Segmenter for the given tag name, e.g. "img".
func New(tag string) (*Segmenter, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.ContainsAny(tag, "<> \t\r\n") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	re, err := regexp.Compile("<" + regexp.QuoteMeta(tag) + "[^>]*>")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTag, err)
	}
	return &Segmenter{tag: tag, re: re}, nil
}

// Tag returns the marker tag name.
func (s *Segmenter) Tag() string {
	return s.tag
}

// Pieces splits doc into literal text and marker tags, in order, keeping the
// markers as pieces of their own. Empty literal pieces are omitted.
func (s *Segmenter) Pieces(doc string) []string {
	var pieces []string
	last := 0
	for _, loc := range s.re.FindAllStringIndex(doc, -1) {
		if loc[0] > last {
			pieces = append(pieces, doc[last:loc[0]])
		}
		pieces = append(pieces, doc[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(doc) {
		pieces = append(pieces, doc[last:])
	}
	return pieces
}

// IsMarker reports whether piece is exactly one marker tag.
func (s *Segmenter) IsMarker(piece string) bool {
	loc := s.re.FindStringIndex(piece)
	return loc != nil && loc[0] == 0 && loc[1] == len(piece)
}

// Split partitions doc into segments. Every segment except possibly the last
// ends with a marker tag and contains no other marker. Concatenating the
// segments in order reproduces doc exactly. No segment is empty.
func (s *Segmenter) Split(doc string) []string {
	var segments []string
	var current strings.Builder

	for _, piece := range s.Pieces(doc) {
		current.WriteString(piece)
		if s.IsMarker(piece) {
			segments = append(segments, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}

	return segments
}
