// Package store persists numbered segments and their corrected versions.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a segment or corrected segment does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidBook is returned for a book ID that cannot be used as a path
// component.
var ErrInvalidBook = errors.New("invalid book id")

// Store holds the segments of one or more books. Indices are 1-based.
type Store interface {
	PutSegment(ctx context.Context, book string, index int, text string) error
	GetSegment(ctx context.Context, book string, index int) (string, error)
	PutCorrected(ctx context.Context, book string, index int, text string) error
	GetCorrected(ctx context.Context, book string, index int) (string, error)
	// ListSegments returns the stored segment indices in ascending order, or
	// ErrNotFound when the book has none.
	ListSegments(ctx context.Context, book string) ([]int, error)
	// ClearBook removes every segment and corrected segment of book and
	// leaves its destination ready for writing.
	ClearBook(ctx context.Context, book string) error
}

// Naming derives segment names from their index: part_001, part_001_corrected.
type Naming struct {
	Prefix          string
	CorrectedSuffix string
}

func DefaultNaming() Naming {
	return Naming{Prefix: "part_", CorrectedSuffix: "_corrected"}
}

func (n Naming) SegmentName(index int) string {
	return fmt.Sprintf("%s%03d", n.Prefix, index)
}

func (n Naming) CorrectedName(index int) string {
	return n.SegmentName(index) + n.CorrectedSuffix
}

// ParseSegmentName returns the index encoded in a segment name. Corrected
// names and foreign names are rejected.
func (n Naming) ParseSegmentName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, n.Prefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i <= 0 {
		return 0, false
	}
	return i, true
}

// ParseName returns the index encoded in a segment or corrected segment name.
func (n Naming) ParseName(name string) (int, bool) {
	if n.CorrectedSuffix != "" {
		if base, ok := strings.CutSuffix(name, n.CorrectedSuffix); ok {
			return n.ParseSegmentName(base)
		}
	}
	return n.ParseSegmentName(name)
}

var bookIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidBook reports whether book is usable as an ID. The empty book is the
// default book.
func ValidBook(book string) error {
	if book != "" && !bookIDRe.MatchString(book) {
		return fmt.Errorf("%w: %q", ErrInvalidBook, book)
	}
	return nil
}

func checkIndex(index int) error {
	if index <= 0 {
		return fmt.Errorf("segment index must be positive, got %d", index)
	}
	return nil
}
