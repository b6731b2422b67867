package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pdfrefine/pdfrefine/internal/enhance"
	"github.com/pdfrefine/pdfrefine/internal/pipeline"
)

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	// Limit total request size, with headroom for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileBytes()+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	opts := enhance.Options{
		Mode:         enhance.Mode(r.FormValue("mode")),
		TargetLength: enhance.TargetLength(r.FormValue("target_length")),
	}
	if opts.Mode == "" {
		opts.Mode = enhance.ModeGeneral
	}
	if opts.TargetLength == "" {
		opts.TargetLength = enhance.LengthMedium
	}
	if err := opts.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Spool the upload to disk; the reader wants random access and large
	// files should not live in memory.
	tmp, err := os.CreateTemp("", "refine-*.pdf")
	if err != nil {
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	n, err := io.Copy(tmp, io.LimitReader(file, s.cfg.MaxFileBytes()+1))
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	if n > s.cfg.MaxFileBytes() {
		os.Remove(tmp.Name())
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxFileBytes()), http.StatusRequestEntityTooLarge)
		return
	}

	job := pipeline.NewJob(filename, tmp.Name(), r.FormValue("password"), opts)
	if err := s.service.Submit(job); err != nil {
		os.Remove(tmp.Name())
		if errors.Is(err, pipeline.ErrQueueFull) {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/refine/%s/status", job.ID),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.service.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.service.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	snap := job.Snapshot()
	result := job.Result()
	if result == nil {
		switch snap.Status {
		case pipeline.StatusFailed:
			jsonError(w, "job failed: "+strings.Join(snap.Progress.Errors, "; "), http.StatusUnprocessableEntity)
		default:
			jsonError(w, "job not finished", http.StatusConflict)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":        snap.ID,
		"status":        snap.Status,
		"metadata":      result.Document.Metadata,
		"enhanced_text": result.EnhancedText,
		"failed_ranges": result.FailedRanges,
		"canceled":      result.Canceled,
		"stats":         result.Stats,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.service.CancelJob(jobID) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": jobID,
		"status": "cancel_requested",
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
