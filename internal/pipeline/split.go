package pipeline

import (
	"context"
	"fmt"

	"github.com/dgallion1/bookfix/internal/config"
	"github.com/dgallion1/bookfix/internal/segment"
	"github.com/dgallion1/bookfix/internal/store"
)

// SplitDocument cuts doc at every marker and stores the segments of book as
// 1, 2, 3, ... replacing whatever the book held before. It returns the number
// of segments written.
//
// Storage failures wrap config.ErrInvalidConfig. A split that fails part way
// clears the book again, so no partial output is left behind.
func SplitDocument(ctx context.Context, st store.Store, seg *segment.Segmenter, book, doc string) (int, error) {
	if err := st.ClearBook(ctx, book); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: prepare book %q: %w", config.ErrInvalidConfig, book, err)
	}

	segments := seg.Split(doc)
	for i, s := range segments {
		err := ctx.Err()
		if err == nil {
			if err = st.PutSegment(ctx, book, i+1, s); err != nil && ctx.Err() == nil {
				err = fmt.Errorf("%w: store segment %d: %w", config.ErrInvalidConfig, i+1, err)
			}
		}
		if err != nil {
			// Roll back what was written.
			_ = st.ClearBook(context.WithoutCancel(ctx), book)
			return 0, err
		}
	}
	return len(segments), nil
}
