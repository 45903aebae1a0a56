package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/formation"
	"github.com/ayusman/aureum/internal/gesture"
	"github.com/ayusman/aureum/internal/texture"
)

// StateSource is everything the state endpoint reports on.
type StateSource interface {
	Scene
	UploadStats() texture.Stats
	Replaying() bool
}

// StateHandler handles GET /api/state.
type StateHandler struct {
	src StateSource
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(src StateSource) *StateHandler {
	return &StateHandler{src: src}
}

type stateResponse struct {
	Seq       uint64           `json:"seq"`
	State     formation.State  `json:"state"`
	Gesture   gesture.Gesture  `json:"gesture"`
	Tracking  bool             `json:"tracking"`
	Replaying bool             `json:"replaying"`
	Selected  string           `json:"selected,omitempty"`
	Orbit     controller.Orbit `json:"orbit"`
	Photos    int              `json:"photos"`
	Uploads   texture.Stats    `json:"uploads"`
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	f := h.src.LatestFrame()
	writeJSON(w, http.StatusOK, stateResponse{
		Seq:       f.Seq,
		State:     f.State,
		Gesture:   f.Gesture,
		Tracking:  f.Tracking,
		Replaying: h.src.Replaying(),
		Selected:  f.Selected,
		Orbit:     f.Orbit,
		Photos:    len(f.Photos),
		Uploads:   h.src.UploadStats(),
	})
}

// TrackingHandler handles GET and PUT /api/tracking.
type TrackingHandler struct {
	svc TrackingService
}

// NewTrackingHandler creates a TrackingHandler.
func NewTrackingHandler(svc TrackingService) *TrackingHandler {
	return &TrackingHandler{svc: svc}
}

type trackingRequest struct {
	Enabled *bool `json:"enabled"`
}

type trackingResponse struct {
	Enabled bool `json:"enabled"`
}

func (h *TrackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, trackingResponse{Enabled: h.svc.Tracking()})
	case http.MethodPut:
		var req trackingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		if err := h.svc.SetTracking(*req.Enabled); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, trackingResponse{Enabled: h.svc.Tracking()})
	default:
		methodNotAllowed(w)
	}
}

// TextureSource serves encoded photo textures.
type TextureSource interface {
	Texture(id string) ([]byte, bool, error)
}

// TextureHandler handles GET /api/textures/{id} with webp bodies.
type TextureHandler struct {
	src TextureSource
}

// NewTextureHandler creates a TextureHandler.
func NewTextureHandler(src TextureSource) *TextureHandler {
	return &TextureHandler{src: src}
}

func (h *TextureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/textures/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Texture not found")
		return
	}

	data, ok, err := h.src.Texture(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode texture")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Texture not found")
		return
	}

	// Texture ids are never reused, so the body never changes.
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
