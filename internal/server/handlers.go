package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/barscan/internal/frame"
	"github.com/MeKo-Tech/barscan/internal/results"
	"github.com/MeKo-Tech/barscan/internal/scan"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/MeKo-Tech/barscan/internal/version"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// resultsHandler returns the result log. format=text|yaml|csv selects a
// non-JSON rendering.
func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := s.scanner.Log()
	entries := log.Entries()

	format := r.URL.Query().Get("format")
	if format != "" && format != formatJSON {
		if !results.ValidFormat(format) {
			s.writeErrorResponse(w, r, "Unsupported format: "+format, http.StatusBadRequest)
			return
		}
		out, err := results.FormatEntries(entries, format)
		if err != nil {
			s.writeErrorResponse(w, r, "Formatting failed", http.StatusInternalServerError)
			return
		}
		switch format {
		case results.FormatCSV:
			w.Header().Set("Content-Type", "text/csv")
		case results.FormatYAML:
			w.Header().Set("Content-Type", "application/yaml")
		default:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		_, _ = w.Write([]byte(out))
		return
	}

	if entries == nil {
		entries = []results.Entry{}
	}
	s.writeJSON(w, http.StatusOK, ResultsResponse{
		Results:  entries,
		Count:    len(entries),
		Distinct: len(log.Distinct()),
		Dropped:  s.scanner.Dropped(),
	})
}

// scanImageHandler runs an uploaded image through the decode stage as a
// single frame.
func (s *Server) scanImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, r, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, r, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, r, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		s.writeErrorResponse(w, r, "Invalid image format", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	out := s.scanner.Submit(ctx, frame.NewImageFrame(img, nil))
	scanRequestsTotal.WithLabelValues(out.Kind.String()).Inc()
	slog.Debug("Scanned uploaded image",
		"request_id", requestID(r.Context()),
		"filename", header.Filename,
		"outcome", out.Kind.String())

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == formatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if out.Display != "" {
			_, _ = w.Write([]byte(out.Display + "\n"))
		}
		return
	}

	resp := ScanResponse{
		Success:   out.Kind != scan.OutcomeFailure,
		RequestID: requestID(r.Context()),
		Outcome:   outcomeJSON(out),
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// optionsHandler reports or replaces the reader options snapshot.
func (s *Server) optionsHandler(w http.ResponseWriter, r *http.Request) {
	session := s.scanner.Session()

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, optionsJSON(session.Options()))
	case http.MethodPut:
		var req OptionsJSON
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErrorResponse(w, r, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		opts, err := req.toOptions()
		if err != nil {
			s.writeErrorResponse(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		session.SetOptions(opts)
		slog.Info("Reader options replaced", "request_id", requestID(r.Context()), "options", opts.String())
		s.writeJSON(w, http.StatusOK, optionsJSON(opts))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// sessionHandler reports (GET) or changes (POST) the session flags.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	session := s.scanner.Session()

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, session.State())
	case http.MethodPost:
		var req SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErrorResponse(w, r, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		state := req.apply(session)
		slog.Info("Session updated",
			"request_id", requestID(r.Context()),
			"paused", state.Paused,
			"crop", state.CropEnabled,
			"torch", state.Torch,
			"pending_save", state.PendingSave)
		s.writeJSON(w, http.StatusOK, state)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	s.writeJSON(w, statusCode, ScanResponse{
		Success:   false,
		RequestID: requestID(r.Context()),
		Error:     message,
	})
}
