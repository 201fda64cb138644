package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a correction job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusCorrecting JobStatus = "correcting"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Job tracks the correction of a single stored segment.
type Job struct {
	mu sync.Mutex

	ID      string `json:"job_id"`
	BookID  string `json:"book_id"`
	Segment int    `json:"segment"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// Progress tracks chunk-level progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	ChunksSucceeded int      `json:"chunks_succeeded"`
	ChunksFailed    int      `json:"chunks_failed"`
	ChunksSkipped   int      `json:"chunks_skipped"`
	FailedChunks    []int    `json:"failed_chunks"`
	Tokens          int      `json:"tokens"`
	Degraded        bool     `json:"degraded"`
	Errors          []string `json:"errors"`
}

// NewJob creates a queued job for one segment of a book.
func NewJob(book string, segment int) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		BookID:    book,
		Segment:   segment,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs that have not changed within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.finishedLocked() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) finishedLocked() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// RecordChunk folds one chunk outcome into the progress counters.
func (j *Job) RecordChunk(outcome ChunkOutcome, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = total
	j.Progress.ChunksProcessed++
	switch {
	case outcome.Skipped:
		j.Progress.ChunksSkipped++
	case outcome.Err != nil:
		j.Progress.ChunksFailed++
		j.Progress.FailedChunks = append(j.Progress.FailedChunks, outcome.Index)
	default:
		j.Progress.ChunksSucceeded++
	}
	j.UpdatedAt = time.Now()
}

// SetResult copies segment-level facts from a finished Result.
func (j *Job) SetResult(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Tokens = res.Tokens
	j.Progress.Degraded = res.Degraded
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	BookID    string    `json:"book_id"`
	Segment   int       `json:"segment"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	p.FailedChunks = append([]int{}, j.Progress.FailedChunks...)
	return JobSnapshot{
		ID:        j.ID,
		BookID:    j.BookID,
		Segment:   j.Segment,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
