package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tiksound/domain/media"
	"tiksound/domain/pipeline"
)

// User-facing messages
const (
	MsgInvalidURL   = "Invalid TikTok URL. Please provide a valid TikTok link."
	MsgInvalidBody  = "Invalid request body. Send JSON like {\"url\": \"...\"}."
	MsgOriginal     = "Original sound detected! You can download the MP3."
	MsgOverlay      = "This video has overlayed sound and cannot be extracted."
	MsgFailed       = "Failed to process the video. Please try again."
	MsgHealthy      = "TikSound Extractor Backend is running"
	MsgFileNotFound = "File not found"
)

// Response status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	maxBodyBytes     = 64 << 10
	downloadCacheAge = "public, max-age=600"
)

type extractRequest struct {
	URL string `json:"url"`
}

type extractResponse struct {
	Status        string `json:"status"`
	OriginalSound *bool  `json:"originalSound,omitempty"`
	DownloadURL   string `json:"downloadUrl,omitempty"`
	Message       string `json:"message"`
	Title         string `json:"title,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Tools   string `json:"tools,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, extractResponse{Status: StatusError, Message: MsgInvalidBody})
		return
	}

	result := s.pipeline.Extract(r.Context(), req.URL)

	switch result.Outcome {
	case pipeline.OutcomeRejected:
		writeJSON(w, http.StatusBadRequest, extractResponse{Status: StatusError, Message: MsgInvalidURL})

	case pipeline.OutcomeFiltered:
		original := false
		writeJSON(w, http.StatusOK, extractResponse{
			Status:        StatusSuccess,
			OriginalSound: &original,
			Message:       MsgOverlay,
		})

	case pipeline.OutcomeSucceeded:
		original := true
		writeJSON(w, http.StatusOK, extractResponse{
			Status:        StatusSuccess,
			OriginalSound: &original,
			DownloadURL:   s.downloadURL(result.Artifact.Name),
			Message:       MsgOriginal,
			Title:         result.Title(),
		})

	default:
		// diagnostics were logged by the pipeline; the client gets a generic message
		s.logger.Debug("extract request failed",
			zap.String("job_id", result.JobID),
			zap.String("stage", string(result.Stage)),
		)
		writeJSON(w, http.StatusInternalServerError, extractResponse{Status: StatusError, Message: MsgFailed})
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	f, info, err := s.pipeline.Download(name)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: MsgFileNotFound})
			return
		}
		s.logger.Error("failed to open download", zap.String("file", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: MsgFailed})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"tiktok_sound_%d.mp3\"", s.now().UnixMilli()))
	w.Header().Set("Cache-Control", downloadCacheAge)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Message: MsgHealthy}
	if r.URL.Query().Get("deep") == "" || s.healthCheck == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if err := s.healthCheck(r.Context()); err != nil {
		s.logger.Warn("deep health check failed", zap.Error(err))
		resp.Status = StatusError
		resp.Tools = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Tools = "ok"
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) downloadURL(name string) string {
	return s.publicBaseURL + "/download/" + name
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
