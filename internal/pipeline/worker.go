package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/bookfix/internal/store"
)

// Worker processes a single segment correction job.
type Worker struct {
	corrector *Corrector
	store     store.Store
	log       *slog.Logger
}

func NewWorker(corrector *Corrector, st store.Store, log *slog.Logger) *Worker {
	return &Worker{
		corrector: corrector,
		store:     st,
		log:       log,
	}
}

// Process loads the segment, corrects it chunk by chunk and stores the result.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "book", job.BookID, "segment", job.Segment)

	job.SetStatus(StatusCorrecting, "correcting")
	res, err := correctStored(ctx, w.store, w.corrector.withLogger(log), job.BookID, job.Segment, job.RecordChunk)
	if res != nil {
		job.SetResult(res)
		for _, e := range res.Errors() {
			job.AddError(e)
		}
	}
	if err != nil {
		log.Error("segment correction failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, phaseFor(err))
		return
	}

	switch {
	case !res.Partial():
		job.SetStatus(StatusCompleted, "done")
	case res.Succeeded > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "correcting")
	}
	log.Info("job finished", "status", job.Snapshot().Status)
}

func phaseFor(err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return "loading"
	}
	return "correcting"
}

func (c *Corrector) withLogger(log *slog.Logger) *Corrector {
	cp := *c
	cp.log = log
	return &cp
}
