package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/bookfix/internal/chunker"
	"github.com/dgallion1/bookfix/internal/config"
	"github.com/dgallion1/bookfix/internal/correct"
	"github.com/dgallion1/bookfix/internal/markup"
	"github.com/dgallion1/bookfix/internal/normalize"
	"github.com/dgallion1/bookfix/internal/tokens"
)

// CorrectorConfig controls how a segment is chunked and how chunk failures are
// handled.
type CorrectorConfig struct {
	Chunk         chunker.Config
	Retry         RetryPolicy
	StopOnFailure bool
}

// CorrectorConfigFromConfig maps environment settings onto a CorrectorConfig.
func CorrectorConfigFromConfig(cfg config.Config) (CorrectorConfig, error) {
	strategy, err := chunker.ParseStrategy(cfg.ChunkStrategy)
	if err != nil {
		return CorrectorConfig{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return CorrectorConfig{
		Chunk:         chunker.Config{MaxUnitSize: cfg.MaxUnitSize, Strategy: strategy},
		Retry:         RetryPolicyFromConfig(cfg),
		StopOnFailure: cfg.StopOnChunkFailure,
	}, nil
}

// ChunkOutcome records what happened to one chunk.
type ChunkOutcome struct {
	Index    int   `json:"index"`
	Chars    int   `json:"chars"`
	Attempts int   `json:"attempts"`
	Skipped  bool  `json:"skipped,omitempty"`
	Err      error `json:"-"`
}

// Result reports the outcome of correcting one segment. Text is always the
// full re-assembled segment: chunks that failed or were skipped contribute
// their normalized, uncorrected text.
type Result struct {
	Text         string
	Chunks       []ChunkOutcome
	Attempted    int
	Succeeded    int
	Failed       int
	Skipped      int
	FailedChunks []int
	Tokens       int
	Degraded     bool
}

// Partial reports whether any chunk kept its uncorrected text.
func (r *Result) Partial() bool {
	return r.Failed > 0 || r.Skipped > 0
}

// Errors returns the chunk failures as "chunk N: <err>".
func (r *Result) Errors() []string {
	var out []string
	for _, c := range r.Chunks {
		if c.Err != nil {
			out = append(out, fmt.Sprintf("chunk %d: %s", c.Index, c.Err))
		}
	}
	return out
}

// ChunkFunc is called after each chunk has been handled.
type ChunkFunc func(outcome ChunkOutcome, total int)

// Corrector turns one raw segment into its corrected text. It is safe for
// concurrent use; each call is sequential over its chunks.
type Corrector struct {
	svc  correct.Service
	est  tokens.Estimator
	norm *normalize.Normalizer
	cfg  CorrectorConfig
	log  *slog.Logger
}

// NewCorrector wires the collaborators. est may be nil to skip token
// estimation.
func NewCorrector(svc correct.Service, est tokens.Estimator, norm *normalize.Normalizer, cfg CorrectorConfig, log *slog.Logger) *Corrector {
	return &Corrector{svc: svc, est: est, norm: norm, cfg: cfg, log: log}
}

// CorrectSegment normalizes text, splits it into chunks and sends each chunk to
// the correction service in order.
//
// The only error returned is for an unusable chunk budget. Service failures
// are reported per chunk in the Result.
func (c *Corrector) CorrectSegment(ctx context.Context, text string) (*Result, error) {
	return c.CorrectSegmentFunc(ctx, text, nil)
}

// CorrectSegmentFunc is CorrectSegment with a per-chunk progress callback.
func (c *Corrector) CorrectSegmentFunc(ctx context.Context, text string, onChunk ChunkFunc) (*Result, error) {
	res := &Result{}

	normalized, err := c.norm.Normalize(text)
	if err != nil {
		if !errors.Is(err, markup.ErrFormat) {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		c.log.Warn("markup normalization failed, collapsing whitespace only", "error", err, "degraded", true)
		normalized = normalize.CollapseWhitespace(text)
		res.Degraded = true
	}

	if c.est != nil {
		n, err := c.est.Estimate(normalized)
		if err != nil {
			c.log.Warn("token estimate failed", "estimator", c.est.Name(), "error", err)
		} else {
			res.Tokens = n
			c.log.Info("segment normalized", "chars", utf8.RuneCountInString(normalized), "tokens", n, "estimator", c.est.Name())
		}
	}

	chunks, err := chunker.Split(normalized, c.cfg.Chunk)
	if err != nil {
		return nil, fmt.Errorf("split chunks: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(normalized))
	stopped := false
	for _, ch := range chunks {
		outcome := ChunkOutcome{Index: ch.Index, Chars: ch.Len()}

		if stopped {
			outcome.Skipped = true
			res.Skipped++
			sb.WriteString(ch.Text)
			res.Chunks = append(res.Chunks, outcome)
			if onChunk != nil {
				onChunk(outcome, len(chunks))
			}
			continue
		}

		res.Attempted++
		out, attempts, err := c.correctChunk(ctx, ch)
		outcome.Attempts = attempts
		if err != nil {
			outcome.Err = err
			res.Failed++
			res.FailedChunks = append(res.FailedChunks, ch.Index)
			sb.WriteString(ch.Text)
			c.log.Error("chunk correction failed", "chunk", ch.Index, "chunks", len(chunks), "attempts", attempts, "error", err)
			if c.cfg.StopOnFailure || ctx.Err() != nil {
				stopped = true
			}
		} else {
			res.Succeeded++
			sb.WriteString(out)
		}
		res.Chunks = append(res.Chunks, outcome)
		if onChunk != nil {
			onChunk(outcome, len(chunks))
		}
	}
	res.Text = sb.String()

	c.log.Info("segment corrected",
		"chunks", len(chunks),
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"degraded", res.Degraded,
	)
	return res, nil
}

// correctChunk calls the service, retrying retryable errors with backoff.
func (c *Corrector) correctChunk(ctx context.Context, ch chunker.Chunk) (string, int, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		out, err := c.svc.Correct(ctx, ch.Text)
		if err == nil {
			return out, attempt + 1, nil
		}
		lastErr = err
		if !correct.IsRetryable(err) || attempt >= c.cfg.Retry.MaxRetries {
			return "", attempt + 1, lastErr
		}

		wait := c.cfg.Retry.Backoff(attempt)
		c.log.Warn("retryable correction error", "chunk", ch.Index, "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", attempt + 1, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		}
	}
}

// BuildCorrector assembles a Corrector from environment settings: the HTML
// normalizer, the model's token estimator and the chunk and retry policy.
func BuildCorrector(cfg config.Config, svc correct.Service, log *slog.Logger) (*Corrector, error) {
	cc, err := CorrectorConfigFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	norm, err := normalize.New(markup.HTMLParser{}, normalize.Options{
		InlineTags: cfg.InlineTags,
		BlockTags:  cfg.BlockTags,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return NewCorrector(svc, tokens.ForModel(cfg.Model), norm, cc, log), nil
}
