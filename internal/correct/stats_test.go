package correct

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestLLMStatsSnapshotPercentiles(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record(100)
	stats.Record(200)
	stats.Record(300)
	stats.Record(400)
	stats.Record(500)

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 {
		t.Fatalf("expected min=100, got %d", snap.MinMs)
	}
	if snap.MaxMs != 500 {
		t.Fatalf("expected max=500, got %d", snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLLMStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewLLMStats(10 * time.Millisecond)
	stats.Record(100)
	time.Sleep(25 * time.Millisecond)

	snap := stats.Snapshot()
	if snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200)
	snap = stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestLLMStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record(-10)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestLLMStatsCountsOutcomes(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record(10)
	stats.RecordOutcome(20, OutcomeRetryable)
	stats.RecordOutcome(30, OutcomeRetryable)
	stats.RecordOutcome(40, OutcomeFailed)

	snap := stats.Snapshot()
	if snap.Outcomes[OutcomeOK] != 1 {
		t.Fatalf("expected 1 ok, got %d", snap.Outcomes[OutcomeOK])
	}
	if snap.Outcomes[OutcomeRetryable] != 2 {
		t.Fatalf("expected 2 retryable, got %d", snap.Outcomes[OutcomeRetryable])
	}
	if snap.Outcomes[OutcomeFailed] != 1 {
		t.Fatalf("expected 1 failed, got %d", snap.Outcomes[OutcomeFailed])
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeOK},
		{&RetryableError{StatusCode: 503}, OutcomeRetryable},
		{fmt.Errorf("wrapped: %w", &RetryableError{StatusCode: 429}), OutcomeRetryable},
		{fmt.Errorf("%w: empty", ErrSuspiciousOutput), OutcomeSuspicious},
		{errors.New("boom"), OutcomeFailed},
	}
	for _, tc := range tests {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v): expected %s, got %s", tc.err, tc.want, got)
		}
	}
}

type fakeService struct {
	out   string
	err   error
	calls int
}

func (f *fakeService) Correct(_ context.Context, text string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return text, nil
}

func TestWithStatsRecordsEveryCall(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	ok := WithStats(&fakeService{}, stats)
	bad := WithStats(&fakeService{err: &RetryableError{StatusCode: 500}}, stats)

	if _, err := ok.Correct(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := bad.Correct(context.Background(), "x"); !IsRetryable(err) {
		t.Fatalf("expected retryable error to pass through, got %v", err)
	}

	snap := stats.Snapshot()
	if snap.Count != 2 {
		t.Fatalf("expected count=2, got %d", snap.Count)
	}
	if snap.Outcomes[OutcomeOK] != 1 || snap.Outcomes[OutcomeRetryable] != 1 {
		t.Fatalf("unexpected outcomes: %v", snap.Outcomes)
	}
}
