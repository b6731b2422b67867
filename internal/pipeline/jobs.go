package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/pdfrefine/pdfrefine/internal/document"
	"github.com/pdfrefine/pdfrefine/internal/enhance"
)

// JobStatus represents the state of a refinement job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
	StatusCanceled   JobStatus = "canceled"
)

// Progress tracks chunk completion for status polling.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksCompleted int      `json:"chunks_completed"`
	Errors          []string `json:"errors,omitempty"`
}

// Job tracks one queued document refinement.
type Job struct {
	mu sync.Mutex

	ID       string    `json:"job_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	sourcePath string
	password   string
	enhanceOpt enhance.Options
	result     *document.EnhancedDocument
	cancel     context.CancelFunc
	errors     []string
}

// NewJob builds a queued job for an uploaded file stored at sourcePath.
func NewJob(filename, sourcePath, password string, opts enhance.Options) *Job {
	now := time.Now()
	return &Job{
		ID:         ContentHashHex([]byte(fmt.Sprintf("%s-%d", filename, now.UnixNano())))[:20],
		Filename:   filename,
		Status:     StatusQueued,
		Phase:      "queued",
		CreatedAt:  now,
		UpdatedAt:  now,
		sourcePath: sourcePath,
		password:   password,
		enhanceOpt: opts,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetPhase updates the phase while processing continues.
func (j *Job) SetPhase(phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetChunkProgress records chunk counts from the engine's progress
// callback. Completed only ever grows.
func (j *Job) SetChunkProgress(completed, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = total
	if completed > j.Progress.ChunksCompleted {
		j.Progress.ChunksCompleted = completed
	}
	j.UpdatedAt = time.Now()
}

// AddError records a failure message.
func (j *Job) AddError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, msg)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetResult stores the finished document.
func (j *Job) SetResult(res *document.EnhancedDocument) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.UpdatedAt = time.Now()
}

// Result returns the finished document, or nil while running.
func (j *Job) Result() *document.EnhancedDocument {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) setCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// Cancel asks a running job to stop. Safe to call in any state.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:       j.ID,
		Filename: j.Filename,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: Progress{
			TotalChunks:     j.Progress.TotalChunks,
			ChunksCompleted: j.Progress.ChunksCompleted,
			Errors:          errs,
		},
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

// Cleanup removes jobs idle longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		idle := now.Sub(job.UpdatedAt)
		job.mu.Unlock()
		if idle > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
