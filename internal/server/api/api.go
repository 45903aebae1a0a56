// Package api provides the JSON HTTP handlers for photos, tracking, scene
// state and recordings.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/texture"
)

// Scene exposes the latest render frame.
type Scene interface {
	LatestFrame() controller.Frame
}

// PhotoService accepts uploads and removals for the formation.
type PhotoService interface {
	Scene
	Upload(source string, data []byte) error
	RemovePhoto(id string) error
	UploadStats() texture.Stats
}

// TrackingService toggles hand tracking.
type TrackingService interface {
	SetTracking(enabled bool) error
	Tracking() bool
}

// Replayer plays saved recordings into the formation.
type Replayer interface {
	Replay(id string) error
	StopReplay()
	Replaying() bool
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
