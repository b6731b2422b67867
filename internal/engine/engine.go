// Package engine runs chunk enhancement over a bounded worker pool with
// retry, backoff, and pipeline-wide rate-limit cooldown, reassembling
// results in original chunk order no matter when each call finishes.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdfrefine/pdfrefine/internal/document"
	"github.com/pdfrefine/pdfrefine/internal/enhance"
)

// Config tunes the worker pool and retry policy.
type Config struct {
	Workers     int           // concurrent enhancement calls
	MaxRetries  int           // attempts per chunk, retryable failures only
	BaseBackoff time.Duration // first retry delay; doubles per attempt
	MaxBackoff  time.Duration // backoff ceiling
	CallTimeout time.Duration // per-attempt deadline
	Cooldown    time.Duration // rate-limit pause when the service gives no Retry-After
}

// DefaultConfig matches the documented service defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     3,
		MaxRetries:  3,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  30 * time.Second,
		CallTimeout: 30 * time.Second,
		Cooldown:    15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = def.BaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	return c
}

// ProgressFunc receives monotonically increasing completion counts.
// Calls are serialized; an observer never sees them concurrently.
type ProgressFunc func(completed, total int)

// Result is the engine's output. Per-chunk failures are data here, not
// errors: failed chunks keep their original text in EnhancedText and
// are flagged in FailedRanges.
type Result struct {
	Results      []document.ChunkResult
	EnhancedText string
	FailedRanges []document.FailedRange
	Canceled     bool
	Stats        document.EnhancementStats
}

// Orchestration-level failures. Per-chunk problems never surface here.
var (
	ErrNoChunks    = errors.New("engine: no chunks to process")
	ErrNilEnhancer = errors.New("engine: enhancer is nil")
)

type run struct {
	cfg  Config
	enh  enhance.Enhancer
	opts enhance.Options
	gate *cooldownGate

	chunks  []document.Chunk
	results []document.ChunkResult

	attempts atomic.Int64

	progressMu sync.Mutex
	completed  int
	onProgress ProgressFunc
}

// Run enhances all chunks and reassembles the text in sequence order.
// Cancellation via ctx stops new dispatches and retry waits; chunks not
// finished by then are reported as failed with reason "canceled" and
// Result.Canceled is set. The error return covers only orchestration
// problems detected before any call is made.
func Run(ctx context.Context, chunks []document.Chunk, enh enhance.Enhancer, opts enhance.Options, cfg Config, onProgress ProgressFunc) (*Result, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	if enh == nil {
		return nil, ErrNilEnhancer
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		cfg:        cfg.withDefaults(),
		enh:        enh,
		opts:       opts,
		gate:       &cooldownGate{},
		chunks:     chunks,
		results:    make([]document.ChunkResult, len(chunks)),
		onProgress: onProgress,
	}

	work := make(chan document.Chunk, len(chunks))
	for _, c := range chunks {
		work <- c
	}
	close(work)

	var g errgroup.Group
	for range r.cfg.Workers {
		g.Go(func() error {
			for chunk := range work {
				// Cancellation check before dispatching new work.
				if ctx.Err() != nil {
					r.record(document.ChunkResult{
						Seq:     chunk.Seq,
						Status:  document.ChunkFailed,
						ErrKind: document.ErrKindCanceled,
					})
					continue
				}
				r.record(r.processChunk(ctx, chunk))
			}
			return nil
		})
	}
	g.Wait()

	return r.assemble(ctx.Err() != nil), nil
}

// processChunk runs the per-chunk attempt loop: cooldown gate, call with
// deadline, classify, backoff, repeat up to MaxRetries.
func (r *run) processChunk(ctx context.Context, chunk document.Chunk) document.ChunkResult {
	res := document.ChunkResult{Seq: chunk.Seq}

	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		if err := r.gate.wait(ctx); err != nil {
			res.Status = document.ChunkFailed
			res.ErrKind = document.ErrKindCanceled
			return res
		}

		res.Attempts++
		r.attempts.Add(1)

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		enhanced, err := r.enh.Enhance(callCtx, chunk.Text, r.opts)
		cancel()

		if err == nil {
			res.Status = document.ChunkSuccess
			res.Enhanced = enhanced
			return res
		}
		if ctx.Err() != nil {
			res.Status = document.ChunkFailed
			res.ErrKind = document.ErrKindCanceled
			return res
		}

		res.ErrKind = classify(err)

		// A rate-limit signal pauses every worker, not just this one,
		// so we stop amplifying the limiter's penalty.
		if res.ErrKind == document.ErrKindRateLimited {
			cooldown := enhance.RetryAfter(err)
			if cooldown <= 0 {
				cooldown = r.cfg.Cooldown
			}
			r.gate.pause(cooldown)
		}

		if !enhance.IsRetryable(err) {
			res.Status = document.ChunkFailed
			return res
		}
		if attempt < r.cfg.MaxRetries-1 && res.ErrKind != document.ErrKindRateLimited {
			if !sleepCtx(ctx, backoff(attempt, r.cfg.BaseBackoff, r.cfg.MaxBackoff)) {
				res.Status = document.ChunkFailed
				res.ErrKind = document.ErrKindCanceled
				return res
			}
		}
	}

	res.Status = document.ChunkFailed
	return res
}

// record stores a result (each seq exactly once) and pushes progress.
func (r *run) record(res document.ChunkResult) {
	r.results[res.Seq] = res

	// The callback runs under the lock so observers see counts in order.
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.completed++
	if r.onProgress != nil {
		r.onProgress(r.completed, len(r.chunks))
	}
}

// assemble sorts by sequence (the results slice already is) and
// concatenates: enhanced text for successes, original text for
// failures, with failed byte ranges recorded for the caller.
func (r *run) assemble(canceled bool) *Result {
	out := &Result{
		Results:  r.results,
		Canceled: canceled,
		Stats: document.EnhancementStats{
			TotalChunks:   len(r.chunks),
			TotalAttempts: int(r.attempts.Load()),
		},
	}

	// Plain concatenation in sequence order: with every chunk failed the
	// output is byte-identical to the source text.
	var sb []byte
	for i, res := range r.results {
		chunk := r.chunks[i]
		if res.Status == document.ChunkSuccess {
			out.Stats.Enhanced++
			sb = append(sb, res.Enhanced...)
			continue
		}
		out.Stats.Failed++
		out.FailedRanges = append(out.FailedRanges, document.FailedRange{
			OffsetRange: chunk.Range,
			Reason:      res.ErrKind,
		})
		sb = append(sb, chunk.Text...)
	}
	out.EnhancedText = string(sb)
	return out
}

// classify maps adapter errors onto chunk error kinds.
func classify(err error) document.ErrorKind {
	var (
		rl   *enhance.RateLimitedError
		tr   *enhance.TransientError
		auth *enhance.AuthError
		inv  *enhance.InvalidInputError
	)
	switch {
	case errors.As(err, &rl):
		return document.ErrKindRateLimited
	case errors.As(err, &auth):
		return document.ErrKindAuth
	case errors.As(err, &inv):
		return document.ErrKindInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return document.ErrKindTimeout
	case errors.Is(err, context.Canceled):
		return document.ErrKindCanceled
	case errors.As(err, &tr):
		return document.ErrKindTransient
	default:
		return document.ErrKindTransient
	}
}

// sleepCtx sleeps for d or until ctx is done; reports whether the full
// sleep happened.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// cooldownGate is the shared pause all workers respect after a
// rate-limit signal. Concurrent pauses extend, never shorten.
type cooldownGate struct {
	mu    sync.Mutex
	until time.Time
}

func (g *cooldownGate) pause(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t := time.Now().Add(d); t.After(g.until) {
		g.until = t
	}
}

// wait blocks until the gate is open or ctx is done. The deadline is
// re-read after each sleep since another worker may have extended it.
func (g *cooldownGate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		until := g.until
		g.mu.Unlock()

		d := time.Until(until)
		if d <= 0 {
			return ctx.Err()
		}
		if !sleepCtx(ctx, d) {
			return ctx.Err()
		}
	}
}
