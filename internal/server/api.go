package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songbridge/internal/metrics"
	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/repositories"
	"github.com/desertthunder/songbridge/internal/shared"
	"github.com/desertthunder/songbridge/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is what the API needs from the orchestrator.
type Engine interface {
	tasks.Engine
	Health() []models.ProviderHealth
	ProviderHealth(id string) (models.ProviderHealth, error)
	SetEnabled(id string, enabled bool) error
	ResetHealth(id string) error
	Strategy() models.Strategy
}

// HistorySource lists past resolutions.
type HistorySource interface {
	List(ctx context.Context, filter repositories.ResolutionFilter) ([]*models.Resolution, error)
}

// APIHandler serves the JSON API.
type APIHandler struct {
	engine  Engine
	history HistorySource
	logger  *log.Logger

	// OnProvidersChanged runs after an enable, disable or reset, e.g. to persist health. Errors are logged.
	OnProvidersChanged func(ctx context.Context) error
}

// NewAPIHandler creates the API handler. history may be nil.
func NewAPIHandler(engine Engine, history HistorySource, logger *log.Logger) *APIHandler {
	return &APIHandler{engine: engine, history: history, logger: logger}
}

// Routes implements [Handler].
func (h *APIHandler) Routes() []Route {
	routes := []Route{
		{http.MethodGet, "/health", h.handleHealth},
		{http.MethodGet, "/api/search", h.handleSearch},
		{http.MethodPost, "/api/resolve", h.handleResolve},
		{http.MethodPost, "/api/lyric", h.handleLyric},
		{http.MethodGet, "/api/providers", h.handleProviders},
		{http.MethodPost, "/api/providers/{id}/enable", h.handleToggle(true)},
		{http.MethodPost, "/api/providers/{id}/disable", h.handleToggle(false)},
		{http.MethodPost, "/api/providers/{id}/reset", h.handleReset},
		{http.MethodGet, "/metrics", promhttp.Handler().ServeHTTP},
	}
	if h.history != nil {
		routes = append(routes, Route{http.MethodGet, "/api/history", h.handleHistory})
	}
	return routes
}

// NewRouter wires the API with the standard middleware stack.
func NewRouter(api *APIHandler, logger *log.Logger) *ChiRouter {
	r := NewChiRouter()
	r.Use(RequestIDMiddleware, LoggingMiddleware(logger), RecoverMiddleware(logger), metrics.Middleware)
	r.Handler(api)
	return r
}

// trackRequest is the body of the resolve and lyric endpoints.
type trackRequest struct {
	Track   models.Track
	Quality string
}

// decode reads the request body. The track goes through [models.DecodeTrack].
func (req *trackRequest) decode(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Track   json.RawMessage `json:"track"`
		Quality string          `json:"quality"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if len(body.Track) == 0 || string(body.Track) == "null" {
		return fmt.Errorf("%w: track is required", shared.ErrMissingArgument)
	}

	track, err := models.DecodeTrack(body.Track)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidTrack, err)
	}
	req.Track = track
	req.Quality = body.Quality
	return nil
}

type errorBody struct {
	Error     string        `json:"error"`
	Kind      string        `json:"kind,omitempty"`
	Attempts  []attemptBody `json:"attempts,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

type attemptBody struct {
	Provider string  `json:"provider"`
	Phase    string  `json:"phase"`
	Kind     string  `json:"kind"`
	TrackID  string  `json:"track_id,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

type providersBody struct {
	Strategy  models.Strategy         `json:"strategy"`
	Providers []models.ProviderHealth `json:"providers"`
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	enabled := 0
	for _, p := range h.engine.Health() {
		if p.Enabled {
			enabled++
		}
	}
	status := "ok"
	code := http.StatusOK
	if enabled == 0 {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "enabled_providers": enabled})
}

func (h *APIHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			h.writeError(w, r, fmt.Errorf("%w: limit must be between 1 and 100", shared.ErrInvalidArgument))
			return
		}
		limit = n
	}

	res, err := h.engine.Search(r.Context(), q.Get("q"), limit, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := req.decode(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	quality, err := models.ParseQuality(req.Quality)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
		return
	}

	res, err := h.engine.ResolveURL(r.Context(), req.Track, quality, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) handleLyric(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := req.decode(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.ResolveLyric(r.Context(), req.Track, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, providersBody{Strategy: h.engine.Strategy(), Providers: h.engine.Health()})
}

func (h *APIHandler) handleToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := h.engine.SetEnabled(id, enabled); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.providersChanged(r.Context())
		h.writeProvider(w, r, id)
	}
}

func (h *APIHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.ResetHealth(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.providersChanged(r.Context())
	h.writeProvider(w, r, id)
}

func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repositories.ResolutionFilter{
		TrackID: q.Get("track_id"),
		Op:      models.ResolveOp(q.Get("op")),
		Outcome: q.Get("outcome"),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidArgument))
			return
		}
		filter.Limit = n
	}

	res, err := h.history.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res == nil {
		res = []*models.Resolution{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) writeProvider(w http.ResponseWriter, r *http.Request, id string) {
	ph, err := h.engine.ProviderHealth(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ph)
}

func (h *APIHandler) providersChanged(ctx context.Context) {
	if h.OnProvidersChanged == nil {
		return
	}
	if err := h.OnProvidersChanged(ctx); err != nil {
		h.logger.Warn("failed to persist provider state", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error(), RequestID: RequestID(r.Context())}
	status := statusFor(err)

	var rerr *tasks.ResolveError
	if errors.As(err, &rerr) {
		body.Error = rerr.Reason.Error()
		for _, a := range rerr.Attempts {
			body.Attempts = append(body.Attempts, attemptBody{
				Provider: a.Provider, Phase: a.Phase.String(), Kind: a.Kind.String(), TrackID: a.TrackID, Score: a.Score,
			})
		}
	}
	if kind := shared.Classify(err); kind != shared.KindUnknown {
		body.Kind = kind.String()
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", body.RequestID)
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidTrack):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnknownProvider),
		errors.Is(err, repositories.ErrNotFound),
		errors.Is(err, tasks.ErrNoEquivalent):
		return http.StatusNotFound
	case errors.Is(err, tasks.ErrUnavailable):
		return http.StatusUnavailableForLegalReasons
	case errors.Is(err, tasks.ErrTryLater),
		errors.Is(err, shared.ErrNoProviders):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
