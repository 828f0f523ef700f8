// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/padmap/internal/adapters/output/pad"
	"github.com/okian/padmap/internal/adapters/profilestore"
	"github.com/okian/padmap/internal/domain/dedupe"
	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/internal/domain/mapping"
)

// Ingestor accepts normalized events for asynchronous processing.
type Ingestor interface {
	Submit(ctx context.Context, ev input.Event) error
}

// ProfileStore is the subset of the profile store the API exposes.
type ProfileStore interface {
	Names() []string
	Get(name string) (mapping.Profile, error)
	IdentifierOf(name string) (string, bool)
	Save(p mapping.Profile, identifier string) error
	Delete(identifier string) error
	ActivateByName(name string) error
	ActiveName() (name, activation string)
}

// PadSource exposes the emulated pad state.
type PadSource interface {
	Snapshot() pad.State
}

// Dependencies bundles what the handlers need. Stream is optional; when nil
// the /ws route is not registered.
type Dependencies struct {
	Deduper  dedupe.Deduper
	Ingestor Ingestor
	Profiles ProfileStore
	Pad      PadSource
	Stats    StatsProvider
	Stream   http.Handler
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	profilesHandler *ProfilesHandler
	padHandler      *PadHandler
	stream          http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(deps.Profiles),
		statsHandler:    NewStatsHandler(deps.Stats),
		eventsHandler:   NewEventsHandler(deps.Deduper, deps.Ingestor),
		profilesHandler: NewProfilesHandler(deps.Profiles),
		padHandler:      NewPadHandler(deps.Pad),
		stream:          deps.Stream,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("GET /pad", MetricsMiddleware(s.padHandler.HandleGetPad, "pad"))

	mux.HandleFunc("GET /profiles", MetricsMiddleware(s.profilesHandler.HandleList, "profiles"))
	mux.HandleFunc("GET /profiles/{name}", MetricsMiddleware(s.profilesHandler.HandleGet, "profile"))
	mux.HandleFunc("PUT /profiles/{name}", MetricsMiddleware(s.profilesHandler.HandlePut, "profile"))
	mux.HandleFunc("DELETE /profiles/{name}", MetricsMiddleware(s.profilesHandler.HandleDelete, "profile"))
	mux.HandleFunc("POST /profiles/{name}/activate", MetricsMiddleware(s.profilesHandler.HandleActivate, "activate"))

	if s.stream != nil {
		mux.Handle("GET /ws", s.stream)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor translates store and request errors to a status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, profilestore.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, profilestore.ErrDuplicateName):
		return http.StatusConflict, "duplicate_name"
	case errors.Is(err, profilestore.ErrInvalidName):
		return http.StatusBadRequest, "invalid_name"
	case errors.Is(err, profilestore.ErrInvalidProfile),
		errors.Is(err, profilestore.ErrMalformedData),
		errors.Is(err, profilestore.ErrCorrupt),
		errors.Is(err, profilestore.ErrUnsupportedFormat),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
