package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"metriscope/app"
	"metriscope/domain/core"
	"metriscope/internal/errors"
	"metriscope/internal/render"
)

var allowedExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".txt":  true,
	".xlsx": true,
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	rep, err := s.service.Analyze(r.Context(), *req)
	if err != nil {
		writeError(w, err)
		return
	}
	if wantsMarkdown(r) {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, render.Markdown(rep))
		return
	}
	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(render.HTML(rep))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAnalyzeQuick(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	rep, err := s.service.Analyze(r.Context(), *req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep.Quick())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	preview, err := s.service.Preview(*req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.NotFound(w, r)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.NotFound(w, r)
		return
	}
	id := chi.URLParam(r, "id")
	rep, err := s.archive.Get(r.Context(), core.ReportID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	if rep == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// readUpload accepts either a multipart "file" field or a raw request
// body, enforcing size and extension limits before any parsing
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*app.AnalyzeRequest, bool) {
	maxBytes := s.cfg.MaxInputBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1)

	req := app.AnalyzeRequest{
		MaxBytes:         maxBytes,
		DisableTransform: r.URL.Query().Get("no_transform") == "true",
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, errors.InvalidInput("multipart upload requires a \"file\" field"))
			return nil, false
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != "" && !allowedExtensions[ext] {
			writeError(w, errors.InvalidInput("unsupported file extension "+ext))
			return nil, false
		}
		raw, err := io.ReadAll(file)
		if err != nil {
			writeError(w, errors.Ingestionf("read upload: %v", err))
			return nil, false
		}
		req.Filename = header.Filename
		req.Raw = raw
		return &req, true
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errors.Ingestionf("read request body: %v", err))
		return nil, false
	}
	if len(raw) == 0 {
		writeError(w, errors.InvalidInput("empty request body"))
		return nil, false
	}
	req.Raw = raw
	return &req, true
}

func wantsMarkdown(r *http.Request) bool {
	return r.URL.Query().Get("format") == "markdown" ||
		strings.Contains(r.Header.Get("Accept"), "text/markdown")
}

func wantsHTML(r *http.Request) bool {
	return r.URL.Query().Get("format") == "html"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] encode response: %v", err)
	}
}

// writeError maps the error taxonomy to HTTP statuses: bad input is the
// caller's fault, schema failures mean the data cannot be analyzed, and
// everything else is a server-side problem
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeIngestion, errors.CodeInvalidInput:
		status = http.StatusBadRequest
	case errors.CodeSchema:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
