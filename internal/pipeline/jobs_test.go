package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pdfrefine/pdfrefine/internal/document"
	"github.com/pdfrefine/pdfrefine/internal/enhance"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestNewJob_Defaults(t *testing.T) {
	job := NewJob("report.pdf", "/tmp/upload-1", "pw", enhance.DefaultOptions())
	if job.Status != StatusQueued {
		t.Errorf("expected status queued, got %q", job.Status)
	}
	if job.Phase != "queued" {
		t.Errorf("expected phase queued, got %q", job.Phase)
	}
	if len(job.ID) != 20 {
		t.Errorf("expected 20-char job id, got %q", job.ID)
	}
	if job.Filename != "report.pdf" {
		t.Errorf("expected filename to be kept, got %q", job.Filename)
	}
	other := NewJob("report.pdf", "/tmp/upload-2", "pw", enhance.DefaultOptions())
	if other.ID == job.ID {
		t.Error("expected distinct ids for separate submissions")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("a.pdf", "/tmp/a", "", enhance.DefaultOptions())

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusProcessing, "reading"},
		{StatusProcessing, "assembling"},
		{StatusProcessing, "chunking"},
		{StatusProcessing, "enhancing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_ChunkProgressMonotonic(t *testing.T) {
	job := NewJob("a.pdf", "/tmp/a", "", enhance.DefaultOptions())
	job.SetChunkProgress(3, 10)
	job.SetChunkProgress(2, 10) // stale update must not regress
	snap := job.Snapshot()
	if snap.Progress.ChunksCompleted != 3 {
		t.Errorf("expected completed to stay at 3, got %d", snap.Progress.ChunksCompleted)
	}
	if snap.Progress.TotalChunks != 10 {
		t.Errorf("expected total 10, got %d", snap.Progress.TotalChunks)
	}
}

func TestJob_ResultAndErrors(t *testing.T) {
	job := NewJob("a.pdf", "/tmp/a", "", enhance.DefaultOptions())
	if job.Result() != nil {
		t.Error("expected nil result before completion")
	}
	job.AddError("chunk bytes 10-20 not enhanced: timeout")
	job.SetResult(&document.EnhancedDocument{EnhancedText: "done"})
	if got := job.Result(); got == nil || got.EnhancedText != "done" {
		t.Errorf("expected stored result, got %+v", got)
	}
	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %d", len(snap.Progress.Errors))
	}
}

func TestJob_Cancel(t *testing.T) {
	job := NewJob("a.pdf", "/tmp/a", "", enhance.DefaultOptions())
	// Cancel before any context is attached is a no-op.
	job.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	job.Cancel()
	select {
	case <-ctx.Done():
	default:
		t.Error("expected attached context to be canceled")
	}
}

func TestJob_ConcurrentUpdates(t *testing.T) {
	job := NewJob("a.pdf", "/tmp/a", "", enhance.DefaultOptions())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			job.SetChunkProgress(n, 20)
			job.SetPhase("enhancing")
			_ = job.Snapshot()
		}(i)
	}
	wg.Wait()
	snap := job.Snapshot()
	if snap.Progress.ChunksCompleted != 19 {
		t.Errorf("expected max completed 19, got %d", snap.Progress.ChunksCompleted)
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewJob("a.pdf", "/tmp/a", "", enhance.DefaultOptions())
	store.Put(job)
	if got := store.Get(job.ID); got != job {
		t.Error("expected to get the stored job back")
	}
	if got := store.Get("missing"); got != nil {
		t.Error("expected nil for an unknown id")
	}
}

func TestJobStore_CleanupEvictsIdleJobs(t *testing.T) {
	store := NewJobStore(10 * time.Millisecond)
	stale := NewJob("old.pdf", "/tmp/old", "", enhance.DefaultOptions())
	store.Put(stale)

	time.Sleep(20 * time.Millisecond)
	fresh := NewJob("new.pdf", "/tmp/new", "", enhance.DefaultOptions())
	store.Put(fresh)

	store.Cleanup()
	if store.Get(stale.ID) != nil {
		t.Error("expected the idle job to be evicted")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("expected the fresh job to survive")
	}
}
