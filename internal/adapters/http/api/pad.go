package api

import "net/http"

// PadHandler serves the emulated pad state.
type PadHandler struct {
	source PadSource
}

// NewPadHandler creates a new pad handler.
func NewPadHandler(source PadSource) *PadHandler {
	return &PadHandler{source: source}
}

// HandleGetPad handles GET /pad requests.
func (h *PadHandler) HandleGetPad(w http.ResponseWriter, _ *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.source.Snapshot())
}
