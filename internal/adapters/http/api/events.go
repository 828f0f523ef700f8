package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/padmap/internal/adapters/mq/queue"
	"github.com/okian/padmap/internal/domain/dedupe"
	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/pkg/metrics"
)

const maxEventBody = 64 << 10

// eventRequest is the body of POST /events. Button events carry pressed,
// axis events carry value.
type eventRequest struct {
	EventID string  `json:"event_id"`
	Device  string  `json:"device"`
	Kind    string  `json:"kind"`
	ID      *uint16 `json:"id"`
	Pressed *bool   `json:"pressed"`
	Value   *int    `json:"value"`
	TS      string  `json:"ts"`
}

func (e eventRequest) toEvent(now time.Time) (input.Event, error) {
	if strings.TrimSpace(e.Device) == "" {
		return input.Event{}, errors.New("missing device")
	}
	kind, err := input.ParseKind(e.Kind)
	if err != nil {
		return input.Event{}, err
	}
	if e.ID == nil {
		return input.Event{}, errors.New("missing id")
	}
	ts := now
	if strings.TrimSpace(e.TS) != "" {
		if ts, err = time.Parse(time.RFC3339Nano, e.TS); err != nil {
			return input.Event{}, errors.New("invalid ts; must be RFC3339")
		}
	}

	device := input.DeviceID(e.Device)
	switch kind {
	case input.KindButton:
		if e.Pressed == nil {
			return input.Event{}, errors.New("button event requires pressed")
		}
		if e.Value != nil {
			return input.Event{}, errors.New("button event must not carry value")
		}
		return input.Button(device, input.ButtonID(*e.ID), *e.Pressed, ts), nil
	default:
		if e.Value == nil {
			return input.Event{}, errors.New("axis event requires value")
		}
		if e.Pressed != nil {
			return input.Event{}, errors.New("axis event must not carry pressed")
		}
		return input.Axis(device, input.AxisID(*e.ID), *e.Value, ts), nil
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// EventsHandler accepts input events from remote capture clients.
type EventsHandler struct {
	deduper  dedupe.Deduper
	ingestor Ingestor
	now      func() time.Time
}

// NewEventsHandler creates a new events handler. A nil deduper disables
// idempotency checks.
func NewEventsHandler(d dedupe.Deduper, ing Ingestor) *EventsHandler {
	return &EventsHandler{deduper: d, ingestor: ing, now: time.Now}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := req.toEvent(h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Mark as seen first so concurrent retries are rejected.
	tracked := h.deduper != nil && req.EventID != ""
	if tracked && h.deduper.SeenAndRecord(r.Context(), req.EventID) {
		metrics.RecordEventDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if err := h.ingestor.Submit(r.Context(), ev); err != nil {
		// A rejected event may be retried under the same id.
		if tracked {
			h.deduper.Unrecord(r.Context(), req.EventID)
		}
		if errors.Is(err, queue.ErrClosed) {
			writeFailure(w, WrapKind(op, ErrUnavailable, err))
			return
		}
		writeFailure(w, WrapKind(op, ErrBackpressure, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
