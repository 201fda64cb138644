package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/bookfix/internal/loader"
	"github.com/dgallion1/bookfix/internal/pipeline"
	"github.com/dgallion1/bookfix/internal/store"
)

// handleUpload loads a document, splits it at the markers and stores the
// segments under a new (or the given) book ID.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

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
	if !loader.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	bookID := r.FormValue("book_id")
	if bookID == "" {
		bookID = uuid.NewString()
	}
	if store.ValidBook(bookID) != nil {
		jsonError(w, "invalid book_id", http.StatusBadRequest)
		return
	}

	l, err := loader.ForFile(filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := l.Load(bytes.NewReader(data), filename)
	if err != nil {
		jsonError(w, "failed to load document: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	n, err := pipeline.SplitDocument(r.Context(), s.store, s.segmenter, bookID, doc)
	if err != nil {
		s.log.Error("split failed", "book", bookID, "error", err)
		jsonError(w, "failed to store segments: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("book split", "book", bookID, "filename", filename, "segments", n)

	writeJSON(w, http.StatusCreated, map[string]any{
		"book_id":  bookID,
		"filename": filename,
		"segments": n,
	})
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	indices, err := s.store.ListSegments(r.Context(), bookID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"book_id":  bookID,
		"segments": indices,
	})
}

func (s *Server) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	index, ok := segmentIndex(w, r)
	if !ok {
		return
	}
	text, err := s.store.GetSegment(r.Context(), bookID, index)
	if err != nil {
		storeError(w, err)
		return
	}
	resp := map[string]any{
		"book_id": bookID,
		"index":   index,
		"text":    text,
	}
	corrected, err := s.store.GetCorrected(r.Context(), bookID, index)
	switch {
	case err == nil:
		resp["corrected"] = corrected
	case !errors.Is(err, store.ErrNotFound):
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCorrectSegment(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	index, ok := segmentIndex(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetSegment(r.Context(), bookID, index); err != nil {
		storeError(w, err)
		return
	}

	job := pipeline.NewJob(bookID, index)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse(job))
}

// handleCorrectBook queues one job per stored segment.
func (s *Server) handleCorrectBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	indices, err := s.store.ListSegments(r.Context(), bookID)
	if err != nil {
		storeError(w, err)
		return
	}

	var results []map[string]any
	for _, index := range indices {
		job := pipeline.NewJob(bookID, index)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"segment": index,
				"error":   err.Error(),
			})
			continue
		}
		results = append(results, jobResponse(job))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"book_id": bookID,
		"jobs":    results,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func jobResponse(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":   snap.ID,
		"book_id":  snap.BookID,
		"segment":  snap.Segment,
		"status":   snap.Status,
		"poll_url": "/api/jobs/" + snap.ID,
	}
}

func segmentIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index <= 0 {
		jsonError(w, "segment index must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidBook):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
