package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/okian/padmap/internal/adapters/profilestore"
)

const maxProfileBody = 1 << 20

var mediaTypes = map[string]string{
	".json": "application/json; charset=utf-8",
	".yaml": "application/yaml; charset=utf-8",
	".toml": "application/toml; charset=utf-8",
}

type profileSummary struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Active     bool   `json:"active"`
}

type profileList struct {
	Profiles   []profileSummary `json:"profiles"`
	Active     string           `json:"active,omitempty"`
	Activation string           `json:"activation,omitempty"`
}

type profileResponse struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	Activation string `json:"activation,omitempty"`
}

// ProfilesHandler manages stored profiles and the active selection.
type ProfilesHandler struct {
	store ProfileStore
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(store ProfileStore) *ProfilesHandler {
	return &ProfilesHandler{store: store}
}

// HandleList handles GET /profiles.
func (h *ProfilesHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	active, activation := h.store.ActiveName()
	names := h.store.Names()
	out := profileList{
		Profiles:   make([]profileSummary, 0, len(names)),
		Active:     active,
		Activation: activation,
	}
	for _, name := range names {
		id, _ := h.store.IdentifierOf(name)
		out.Profiles = append(out.Profiles, profileSummary{Name: name, Identifier: id, Active: name == active})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /profiles/{name}. The document format follows the
// format query parameter and defaults to JSON.
func (h *ProfilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	ext, err := formatFromQuery(r.URL.Query().Get("format"))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.store.Get(r.PathValue("name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	data, err := profilestore.Encode(ext, p)
	if err != nil {
		writeFailure(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	w.Header().Set("Content-Type", mediaTypes[ext])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandlePut handles PUT /profiles/{name}. The body format follows the
// Content-Type header. Saving the active profile re-activates it.
func (h *ProfilesHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_profile"
	name := r.PathValue("name")
	ext, err := formatFromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProfileBody))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := profilestore.Decode(ext, data)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if p.Name != name {
		writeFailure(w, WrapKind(op, ErrBadRequest, fmt.Errorf("body names profile %q, path names %q", p.Name, name)))
		return
	}

	identifier, known := h.store.IdentifierOf(name)
	if !known {
		identifier = name
	}
	if err := h.store.Save(p, identifier); err != nil {
		writeFailure(w, err)
		return
	}

	resp := profileResponse{Status: "saved", Name: name}
	if active, _ := h.store.ActiveName(); active == name {
		if err := h.store.ActivateByName(name); err != nil {
			writeFailure(w, err)
			return
		}
		resp.Active = true
		_, resp.Activation = h.store.ActiveName()
	}
	status := http.StatusOK
	if !known {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// HandleDelete handles DELETE /profiles/{name}.
func (h *ProfilesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	identifier, ok := h.store.IdentifierOf(name)
	if !ok {
		writeFailure(w, fmt.Errorf("%w: %q", profilestore.ErrNotFound, name))
		return
	}
	if err := h.store.Delete(identifier); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleActivate handles POST /profiles/{name}/activate.
func (h *ProfilesHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.ActivateByName(name); err != nil {
		writeFailure(w, err)
		return
	}
	_, activation := h.store.ActiveName()
	writeJSON(w, http.StatusOK, profileResponse{Status: "active", Name: name, Active: true, Activation: activation})
}

func formatFromQuery(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return ".json", nil
	case "yaml", "yml":
		return ".yaml", nil
	case "toml":
		return ".toml", nil
	default:
		return "", fmt.Errorf("%w: %q", profilestore.ErrUnsupportedFormat, format)
	}
}

func formatFromContentType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return ".json", nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", errors.New("invalid content type")
	}
	switch mt {
	case "application/json", "text/json":
		return ".json", nil
	case "application/yaml", "application/x-yaml", "text/yaml":
		return ".yaml", nil
	case "application/toml", "text/toml":
		return ".toml", nil
	default:
		return "", fmt.Errorf("%w: %q", profilestore.ErrUnsupportedFormat, mt)
	}
}
