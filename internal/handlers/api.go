package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/dal"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/form"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/models"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/predictor"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/pubsub"
	"github.com/Billy-Davies-2/nba-predictor-ui/internal/teams"
)

// MaxHistoryLimit caps /api/history page size
const MaxHistoryLimit = 100

// EventBus is the pub/sub the handlers publish to and stream from
type EventBus interface {
	Publish(pubsub.Event)
	Subscribe() chan pubsub.Event
	Unsubscribe(chan pubsub.Event)
}

// BackendChecker probes the prediction service
type BackendChecker interface {
	CheckHealth(ctx context.Context) bool
}

// WinCounter aggregates predicted winners, from analytics or the history store
type WinCounter interface {
	TeamWinCounts(ctx context.Context) ([]models.TeamWinCount, error)
}

// Gauge tracks connected stream clients
type Gauge interface {
	Inc()
	Dec()
}

// APIHandlers contains all API handler methods
type APIHandlers struct {
	predictor  form.Predictor
	checker    BackendChecker
	store      dal.PredictionStore
	stats      WinCounter
	bus        EventBus
	sseClients Gauge
	keepalive  time.Duration
	now        func() time.Time
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(p form.Predictor, checker BackendChecker, store dal.PredictionStore, stats WinCounter, bus EventBus) *APIHandlers {
	return &APIHandlers{
		predictor: p,
		checker:   checker,
		store:     store,
		stats:     stats,
		bus:       bus,
		keepalive: 30 * time.Second,
		now:       time.Now,
	}
}

// WithSSEGauge counts connected event stream clients in g
func (h *APIHandlers) WithSSEGauge(g Gauge) *APIHandlers {
	h.sseClients = g
	return h
}

// ListTeams returns the team directory in display order
func (h *APIHandlers) ListTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, teams.List())
}

type predictResponse struct {
	Request models.GameRequest      `json:"request"`
	Result  models.PredictionResult `json:"result"`
	View    form.View               `json:"view"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Status int               `json:"status,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Predict validates a game and asks the prediction service, without touching
// any session state
func (h *APIHandlers) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in form.Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&in); err != nil {
		logger.Warn("Failed to decode predict request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}

	req, verrs := form.Validate(in, h.now())
	if verrs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "Validation failed", Fields: verrs})
		return
	}

	res, err := h.predictor.Predict(r.Context(), req)
	if err != nil {
		pe := predictor.AsError(err)
		writeJSON(w, statusFor(pe), errorResponse{Error: pe.Message, Kind: string(pe.Kind), Status: pe.Status})
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{Request: req, Result: *res, View: form.NewView(req, *res)})
}

func statusFor(pe *predictor.Error) int {
	switch pe.Kind {
	case predictor.KindRequestRejected:
		if pe.Status >= 400 && pe.Status < 600 {
			return pe.Status
		}
		return http.StatusBadGateway
	case predictor.KindUnreachable:
		return http.StatusServiceUnavailable
	case predictor.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// BackendHealth reports whether the prediction service answers /health
func (h *APIHandlers) BackendHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.checker.CheckHealth(ctx) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "up", "timestamp": h.now().Unix()})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "down", "timestamp": h.now().Unix()})
}

// History returns recent predictions, newest first
func (h *APIHandlers) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := dal.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	recs, err := h.store.RecentPredictions(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to load prediction history", "error", err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, recs)
}

type teamWins struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats returns how often each team has been predicted to win
func (h *APIHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts, err := h.stats.TeamWinCounts(r.Context())
	if err != nil {
		logger.Error("Failed to load prediction stats", "error", err)
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	out := make([]teamWins, 0, len(counts))
	for _, c := range counts {
		out = append(out, teamWins{Code: c.Code, Name: teams.Label(c.Code), Count: c.Count})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teamWins": out})
}

// EventsSSE provides Server-Sent Events for realtime updates
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan := h.bus.Subscribe()
	defer h.bus.Unsubscribe(eventChan)

	if h.sseClients != nil {
		h.sseClients.Inc()
		defer h.sseClients.Dec()
	}

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("Failed to marshal event", "error", err, "type", event.Type)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}
