// Package handlers provides HTTP request handlers for the renderd API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phoenixlabs/renderd/internal/browser"
	"github.com/phoenixlabs/renderd/internal/config"
	"github.com/phoenixlabs/renderd/internal/render"
	"github.com/phoenixlabs/renderd/internal/types"
	"github.com/phoenixlabs/renderd/pkg/version"
)

// maxBodySize caps request bodies to prevent memory exhaustion (1MB).
const maxBodySize = 1 << 20

// Renderer runs a batch of render requests. The concrete implementation
// is render.Scheduler; tests substitute stubs.
type Renderer interface {
	Render(ctx context.Context, reqs []types.RenderRequest) ([]types.RenderResult, error)
}

// StateReporter exposes the browser session state for health output.
type StateReporter interface {
	State() browser.State
}

// Transcriber produces a transcript for a YouTube url.
type Transcriber interface {
	Transcribe(ctx context.Context, url string) (*types.TranscribeResult, error)
}

// Handler handles all renderd API requests.
type Handler struct {
	renderer    Renderer
	gate        *render.Gate
	session     StateReporter
	transcriber Transcriber // nil when transcription is disabled
	config      *config.Config
}

// New creates a new Handler. transcriber may be nil.
func New(renderer Renderer, gate *render.Gate, session StateReporter, transcriber Transcriber, cfg *config.Config) *Handler {
	return &Handler{
		renderer:    renderer,
		gate:        gate,
		session:     session,
		transcriber: transcriber,
		config:      cfg,
	}
}

// Routes returns the API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/render", h.handleRender)
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/health", h.handleHealth)
	if h.transcriber != nil {
		mux.HandleFunc("/api/transcribe", h.handleTranscribe)
	}
	return mux
}

// handleRender renders a batch of urls. The body is either a bare JSON
// array of {"url": ...} items or the legacy {"urls": [...]} wrapper;
// the response carries one result per item in request order.
func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, types.BatchResponse{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	buf := getBuffer()
	defer putBuffer(buf)

	if _, err := io.Copy(buf, r.Body); err != nil {
		log.Warn().Err(err).Msg("Failed to read request body")
		writeJSON(w, http.StatusBadRequest, types.BatchResponse{Error: "failed to read request body"})
		return
	}

	reqs, err := types.DecodeBatch(buf.Bytes())
	if err != nil {
		log.Warn().Err(err).Msg("Rejected render batch")
		writeJSON(w, http.StatusBadRequest, types.BatchResponse{Error: err.Error()})
		return
	}

	if !h.gate.TryAcquire() {
		log.Info().Int("size", len(reqs)).Msg("Batch rejected, another batch is in flight")
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusTooManyRequests, types.BatchResponse{
			Error: types.ErrBatchInFlight.Error(),
		})
		return
	}
	defer h.gate.Release()

	results, err := h.renderer.Render(r.Context(), reqs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrEmptyBatch) || errors.Is(err, types.ErrInvalidBatch) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Int("size", len(reqs)).Msg("Render batch failed")
		writeJSON(w, status, types.BatchResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, types.BatchResponse{OK: true, Results: results})
}

// handleHealth reports liveness. It never touches the browser; the
// session state is read from memory so a wedged browser cannot wedge
// the health check.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, types.BatchResponse{Error: "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		OK:      true,
		Service: "renderd",
		Session: h.session.State().String(),
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, types.TranscribeResponse{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	var req types.TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.TranscribeResponse{Error: "invalid JSON request"})
		return
	}

	result, err := h.transcriber.Transcribe(r.Context(), req.URL)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, types.ErrNotYouTubeURL), errors.Is(err, types.ErrURLRequired):
			status = http.StatusBadRequest
		case errors.Is(err, types.ErrNoCaptions):
			status = http.StatusNotFound
		}
		log.Warn().Err(err).Msg("Transcription failed")
		writeJSON(w, status, types.TranscribeResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, types.TranscribeResponse{OK: true, Result: result})
}

// writeJSON writes a JSON response using a pooled buffer so large
// result payloads do not churn the allocator.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	buf := getResponseBuffer()
	defer putResponseBuffer(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug().Err(err).Msg("Failed to write response, client likely gone")
	}
}
