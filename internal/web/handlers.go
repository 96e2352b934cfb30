// Package web exposes the control surface: health, run start/stop, and a
// read-only status snapshot. It never reaches into pipeline internals.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/telescout/telescout/internal/pipeline"
	"github.com/telescout/telescout/internal/ratelimit"
	"github.com/telescout/telescout/internal/storage"
	"github.com/telescout/telescout/internal/telegram"
)

// RunManager is the run-control surface the handlers drive.
type RunManager interface {
	Start(historical, live bool) (*pipeline.Run, error)
	Stop()
	Current() *pipeline.Run
	LastError() error
	Stats() pipeline.Snapshot
}

// LimiterStatus reports forward-budget usage.
type LimiterStatus interface {
	Status() ratelimit.Status
}

// HistoryStats reports forward-log aggregates. Optional.
type HistoryStats interface {
	Stats(ctx context.Context) (*storage.Totals, error)
}

// ClientStatus reports the Telegram connection state.
type ClientStatus interface {
	Status() telegram.Status
}

// Handler serves the control API.
type Handler struct {
	manager RunManager
	limiter LimiterStatus
	history HistoryStats
	client  ClientStatus
}

// NewHandler wires the control API dependencies. history may be nil.
func NewHandler(manager RunManager, limiter LimiterStatus, history HistoryStats, client ClientStatus) *Handler {
	return &Handler{
		manager: manager,
		limiter: limiter,
		history: history,
		client:  client,
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// StartRunRequest selects which phases to run. Both default to enabled.
type StartRunRequest struct {
	Historical *bool `json:"historical,omitempty"`
	Live       *bool `json:"live,omitempty"`
}

// StartRun handles POST /api/v1/run.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	historical, live := true, true
	if r.Body != nil && r.ContentLength != 0 {
		var req StartRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
		if req.Historical != nil {
			historical = *req.Historical
		}
		if req.Live != nil {
			live = *req.Live
		}
	}

	if !historical && !live {
		respondError(w, http.StatusBadRequest, "at least one phase must be enabled")
		return
	}

	run, err := h.manager.Start(historical, live)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// StopRun handles DELETE /api/v1/run.
func (h *Handler) StopRun(w http.ResponseWriter, r *http.Request) {
	h.manager.Stop()
	respondJSON(w, http.StatusOK, map[string]string{"message": "run stopped"})
}

// StatusResponse is the full status snapshot.
type StatusResponse struct {
	TelegramStatus telegram.Status   `json:"telegram_status"`
	Run            *pipeline.Run     `json:"run,omitempty"`
	LastError      string            `json:"last_error,omitempty"`
	Stats          pipeline.Snapshot `json:"stats"`
	RateLimit      ratelimit.Status  `json:"rate_limit"`
	History        *storage.Totals   `json:"history,omitempty"`
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		TelegramStatus: h.client.Status(),
		Run:            h.manager.Current(),
		Stats:          h.manager.Stats(),
		RateLimit:      h.limiter.Status(),
	}
	if err := h.manager.LastError(); err != nil && !errors.Is(err, context.Canceled) {
		resp.LastError = err.Error()
	}
	if h.history != nil {
		if totals, err := h.history.Stats(r.Context()); err == nil {
			resp.History = totals
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
