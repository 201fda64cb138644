package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/bookfix/internal/chunker"
	"github.com/dgallion1/bookfix/internal/markup"
	"github.com/dgallion1/bookfix/internal/normalize"
	"github.com/dgallion1/bookfix/internal/tokens"
)

// scriptedService answers each call through fn and records the inputs.
type scriptedService struct {
	mu    sync.Mutex
	calls []string
	fn    func(call int, text string) (string, error)
}

func (s *scriptedService) Correct(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	n := len(s.calls)
	s.mu.Unlock()
	if s.fn == nil {
		return strings.ToUpper(text), nil
	}
	return s.fn(n, text)
}

func (s *scriptedService) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry(max int) RetryPolicy {
	return RetryPolicy{MaxRetries: max, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newTestCorrector(t *testing.T, svc *scriptedService, unit int, stop bool) *Corrector {
	t.Helper()
	norm, err := normalize.New(markup.HTMLParser{}, normalize.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewCorrector(svc, tokens.Heuristic{}, norm, CorrectorConfig{
		Chunk:         chunker.Config{MaxUnitSize: unit, Strategy: chunker.StrategyRawCharacter},
		Retry:         fastRetry(3),
		StopOnFailure: stop,
	}, discardLogger())
}
