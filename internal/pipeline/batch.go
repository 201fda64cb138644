package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/bookfix/internal/store"
)

// CorrectStored corrects segment index of book and stores the result under the
// corrected name, including partial results.
func CorrectStored(ctx context.Context, st store.Store, c *Corrector, book string, index int) (*Result, error) {
	return correctStored(ctx, st, c, book, index, nil)
}

func correctStored(ctx context.Context, st store.Store, c *Corrector, book string, index int, onChunk ChunkFunc) (*Result, error) {
	text, err := st.GetSegment(ctx, book, index)
	if err != nil {
		return nil, fmt.Errorf("load segment %d: %w", index, err)
	}
	res, err := c.CorrectSegmentFunc(ctx, text, onChunk)
	if err != nil {
		return nil, fmt.Errorf("correct segment %d: %w", index, err)
	}
	if err := st.PutCorrected(ctx, book, index, res.Text); err != nil {
		return res, fmt.Errorf("store corrected segment %d: %w", index, err)
	}
	return res, nil
}

// SegmentResult pairs a segment index with its correction outcome.
type SegmentResult struct {
	Index  int
	Result *Result
	Err    error
}

// CorrectAll corrects every stored segment of book, running at most parallel
// segments at a time. One segment failing does not stop the others; the
// returned error joins the per-segment errors.
func CorrectAll(ctx context.Context, st store.Store, c *Corrector, book string, parallel int) ([]SegmentResult, error) {
	indices, err := st.ListSegments(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	if parallel <= 0 {
		parallel = 1
	}

	results := make([]SegmentResult, len(indices))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, index := range indices {
		g.Go(func() error {
			res, err := CorrectStored(ctx, st, c, book, index)
			results[i] = SegmentResult{Index: index, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}
