package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/bookfix/internal/pathstore"
)

const defaultBook = "default"

// PathStore keeps segments in the pathstore service under
// books/<book>/segments/part_001 and books/<book>/corrected/part_001_corrected.
type PathStore struct {
	client *pathstore.Client
	naming Naming
}

func NewPathStore(client *pathstore.Client, naming Naming) *PathStore {
	return &PathStore{client: client, naming: naming}
}

type segmentValue struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

func (s *PathStore) prefix(book, kind string) (string, error) {
	if err := ValidBook(book); err != nil {
		return "", err
	}
	if book == "" {
		book = defaultBook
	}
	return "books/" + book + "/" + kind, nil
}

func (s *PathStore) put(ctx context.Context, book, kind, name string, index int, text string) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	prefix, err := s.prefix(book, kind)
	if err != nil {
		return err
	}
	return s.client.PutNode(ctx, prefix+"/"+name, pathstore.NodeRequest{
		Value:  segmentValue{Text: text, Index: index},
		Source: "bookfix:" + book,
	})
}

func (s *PathStore) get(ctx context.Context, book, kind, name string, index int) (string, error) {
	if err := checkIndex(index); err != nil {
		return "", err
	}
	prefix, err := s.prefix(book, kind)
	if err != nil {
		return "", err
	}
	node, err := s.client.GetNode(ctx, prefix+"/"+name)
	if errors.Is(err, pathstore.ErrNotFound) {
		return "", fmt.Errorf("%s/%s: %w", prefix, name, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	var v segmentValue
	if err := json.Unmarshal(node.Value, &v); err != nil {
		return "", fmt.Errorf("decode %s/%s: %w", prefix, name, err)
	}
	return v.Text, nil
}

func (s *PathStore) PutSegment(ctx context.Context, book string, index int, text string) error {
	return s.put(ctx, book, "segments", s.naming.SegmentName(index), index, text)
}

func (s *PathStore) GetSegment(ctx context.Context, book string, index int) (string, error) {
	return s.get(ctx, book, "segments", s.naming.SegmentName(index), index)
}

func (s *PathStore) PutCorrected(ctx context.Context, book string, index int, text string) error {
	return s.put(ctx, book, "corrected", s.naming.CorrectedName(index), index, text)
}

func (s *PathStore) GetCorrected(ctx context.Context, book string, index int) (string, error) {
	return s.get(ctx, book, "corrected", s.naming.CorrectedName(index), index)
}

// ClearBook deletes the segments and corrected subtrees of book.
func (s *PathStore) ClearBook(ctx context.Context, book string) error {
	for _, kind := range []string{"segments", "corrected"} {
		prefix, err := s.prefix(book, kind)
		if err != nil {
			return err
		}
		if err := s.client.DeleteNode(ctx, prefix, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *PathStore) ListSegments(ctx context.Context, book string) ([]int, error) {
	prefix, err := s.prefix(book, "segments")
	if err != nil {
		return nil, err
	}
	nodes, err := s.client.ListChildren(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("book %q: %w", book, ErrNotFound)
	}

	var indices []int
	for _, n := range nodes {
		// The service reports keys either slash- or dot-separated.
		parts := strings.FieldsFunc(n.Key, func(r rune) bool { return r == '/' || r == '.' })
		if len(parts) == 0 {
			continue
		}
		if i, ok := s.naming.ParseSegmentName(parts[len(parts)-1]); ok {
			indices = append(indices, i)
		}
	}
	slices.Sort(indices)
	return slices.Compact(indices), nil
}
