// Package pipeline sequences reader, assembler, chunker, and engine
// into complete refinement runs, and manages them as queued jobs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdfrefine/pdfrefine/internal/assembler"
	"github.com/pdfrefine/pdfrefine/internal/chunker"
	"github.com/pdfrefine/pdfrefine/internal/document"
	"github.com/pdfrefine/pdfrefine/internal/engine"
	"github.com/pdfrefine/pdfrefine/internal/enhance"
	"github.com/pdfrefine/pdfrefine/internal/reader"
)

// RunOptions parameterizes a single pipeline run.
type RunOptions struct {
	Password string
	Chunk    chunker.Options
	Enhance  enhance.Options
	Engine   engine.Config

	// OnProgress receives completed/total chunk counts as they happen.
	OnProgress engine.ProgressFunc
	// OnPhase is told when the run enters a new stage.
	OnPhase func(phase string)
}

// DocumentSource is what Run needs from an open document: the
// assembler's page-stream capability plus cleanup.
type DocumentSource interface {
	assembler.Source
	Close() error
}

// OpenFunc opens a document source. Injectable so tests can drive the
// runner with synthetic documents.
type OpenFunc func(path, password string) (DocumentSource, error)

// Runner executes one pipeline run at a time over a shared enhancer.
// All per-run state lives in the run itself; concurrent Runs do not
// interfere.
type Runner struct {
	enhancer enhance.Enhancer
	open     OpenFunc
	log      *slog.Logger
}

// NewRunner wires a runner to the real PDF reader.
func NewRunner(enh enhance.Enhancer, maxFileBytes int64, log *slog.Logger) *Runner {
	return &Runner{
		enhancer: enh,
		open: func(path, password string) (DocumentSource, error) {
			h, err := reader.Open(path, password, maxFileBytes)
			if err != nil {
				return nil, err
			}
			return &handleSource{h: h}, nil
		},
		log: log,
	}
}

// NewRunnerWithOpen wires a runner to a custom document opener.
func NewRunnerWithOpen(enh enhance.Enhancer, open OpenFunc, log *slog.Logger) *Runner {
	return &Runner{enhancer: enh, open: open, log: log}
}

// Run executes reader → assembler → chunker → engine. Reader and
// assembler failures abort immediately; enhancement degradation is
// data on a successful result, and cancellation yields the best-effort
// partial document with Canceled set rather than an error.
func (r *Runner) Run(ctx context.Context, path string, opts RunOptions) (*document.EnhancedDocument, error) {
	if err := opts.Enhance.Validate(); err != nil {
		return nil, fmt.Errorf("enhancement options: %w", err)
	}
	if err := opts.Chunk.Validate(); err != nil {
		return nil, err
	}
	phase := func(p string) {
		if opts.OnPhase != nil {
			opts.OnPhase(p)
		}
	}

	phase("reading")
	src, err := r.open(path, opts.Password)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	phase("assembling")
	doc, text, err := assembler.Assemble(src)
	if err != nil {
		return nil, err
	}
	r.log.Info("document assembled",
		"pages", len(doc.Pages),
		"tables", len(doc.Tables()),
		"text_bytes", len(text),
	)

	if text == "" {
		// Image-only document: nothing to enhance, but not an error.
		return &document.EnhancedDocument{Document: doc}, nil
	}

	phase("chunking")
	chunks, err := chunker.Split(text, opts.Chunk)
	if err != nil {
		return nil, err
	}
	r.log.Info("text chunked", "chunks", len(chunks))

	phase("enhancing")
	res, err := engine.Run(ctx, chunks, r.enhancer, opts.Enhance, opts.Engine, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	r.log.Info("enhancement finished",
		"enhanced", res.Stats.Enhanced,
		"failed", res.Stats.Failed,
		"attempts", res.Stats.TotalAttempts,
		"canceled", res.Canceled,
	)

	return &document.EnhancedDocument{
		Document:     doc,
		SourceText:   text,
		EnhancedText: res.EnhancedText,
		FailedRanges: res.FailedRanges,
		Canceled:     res.Canceled,
		Stats:        res.Stats,
	}, nil
}

// handleSource adapts a reader handle to the assembler's Source.
type handleSource struct {
	h *reader.DocumentHandle
}

func (s *handleSource) Metadata() document.Metadata {
	return s.h.Metadata()
}

func (s *handleSource) Pages() *assembler.PageStream {
	it := s.h.Pages()
	return &assembler.PageStream{Next: it.Next}
}

func (s *handleSource) Close() error {
	return s.h.Close()
}
