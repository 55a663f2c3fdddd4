package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/phasewatch/internal/ingest"
	"github.com/claude/phasewatch/internal/storage"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	stats, err := s.db.GetDataStats(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUploadLogs(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.db.QueryUploadLogs(r.Context(), uid, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	devices, err := s.db.GetDevices(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

type deviceRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (s *Server) handleSetDevice(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	name := chi.URLParam(r, "name")
	err := s.db.SetDeviceEnabled(r.Context(), uid, name, *req.Enabled)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "device not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "enabled": *req.Enabled})
}

// logUpload records an upload's result to the upload_logs table.
func (s *Server) logUpload(uid int, device string, result *ingest.Result, uploadErr error, durationMs int) {
	entry := storage.UploadLog{
		UserID:     uid,
		Device:     device,
		Status:     "success",
		DurationMs: &durationMs,
	}
	if uploadErr != nil {
		entry.Status = "error"
		msg := uploadErr.Error()
		entry.ErrorMessage = &msg
	}
	if result != nil {
		if uploadErr == nil {
			id := result.ExportID
			entry.ExportID = &id
		}
		entry.NightsReceived = result.NightsReceived
		entry.NightsInserted = result.NightsInserted
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	if _, err := s.db.InsertUploadLog(ctx, entry); err != nil {
		s.log.Error("failed to log upload", "device", device, "error", err)
	}
}

// contextWithTimeout returns a background context with a 5-second timeout for logging.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
}
