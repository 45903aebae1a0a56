package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/aureum/internal/recording"
	"github.com/ayusman/aureum/internal/store"
)

// RecordingHandler handles /api/recordings and its sub-resources.
type RecordingHandler struct {
	recorder *recording.Recorder
	replayer Replayer
}

// NewRecordingHandler creates a RecordingHandler. replayer may be nil, in
// which case replay requests are refused.
func NewRecordingHandler(rec *recording.Recorder, replayer Replayer) *RecordingHandler {
	return &RecordingHandler{recorder: rec, replayer: replayer}
}

// ServeHTTP routes:
//
//	GET    /api/recordings
//	POST   /api/recordings             start
//	POST   /api/recordings/stop
//	POST   /api/recordings/import      session JSON body
//	GET    /api/recordings/{id}        session with samples
//	DELETE /api/recordings/{id}
//	POST   /api/recordings/{id}/replay
func (h *RecordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/recordings"), "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.start(w, r)
		default:
			methodNotAllowed(w)
		}

	case path == "stop":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.stop(w, r)

	case path == "import":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.importSession(w, r)

	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			methodNotAllowed(w)
		}

	case len(parts) == 2 && parts[1] == "replay":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.replay(w, r, parts[0])

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type startRecordingRequest struct {
	Name string `json:"name"`
}

type recordingResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	StartedAt  string  `json:"started_at"`
	DurationMS float64 `json:"duration_ms"`
	Samples    int     `json:"samples"`
}

type listRecordingsResponse struct {
	Recordings []recordingResponse `json:"recordings"`
	Active     string              `json:"active,omitempty"`
}

func toRecordingResponse(rec *store.Recording) recordingResponse {
	return recordingResponse{
		ID:         rec.ID,
		Name:       rec.Name,
		StartedAt:  rec.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		DurationMS: float64(rec.Duration.Microseconds()) / 1000,
		Samples:    rec.Samples,
	}
}

// list handles GET /api/recordings.
func (h *RecordingHandler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.recorder.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recordings")
		return
	}

	resp := listRecordingsResponse{Recordings: make([]recordingResponse, 0, len(recs))}
	for _, rec := range recs {
		resp.Recordings = append(resp.Recordings, toRecordingResponse(rec))
	}
	if id, ok := h.recorder.Active(); ok {
		resp.Active = id
	}
	writeJSON(w, http.StatusOK, resp)
}

// start handles POST /api/recordings. The body is optional.
func (h *RecordingHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	id, err := h.recorder.Start(req.Name)
	if errors.Is(err, recording.ErrAlreadyRecording) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start recording")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// stop handles POST /api/recordings/stop.
func (h *RecordingHandler) stop(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recorder.Stop()
	if errors.Is(err, recording.ErrNotRecording) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save recording")
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}

// importSession handles POST /api/recordings/import.
func (h *RecordingHandler) importSession(w http.ResponseWriter, r *http.Request) {
	sess, err := recording.ReadSession(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.recorder.Import(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save recording")
		return
	}
	writeJSON(w, http.StatusCreated, toRecordingResponse(rec))
}

// get handles GET /api/recordings/{id} and returns the full session.
func (h *RecordingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.recorder.Load(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Recording not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load recording")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// delete handles DELETE /api/recordings/{id}.
func (h *RecordingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.recorder.Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Recording not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete recording")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// replay handles POST /api/recordings/{id}/replay.
func (h *RecordingHandler) replay(w http.ResponseWriter, r *http.Request, id string) {
	if h.replayer == nil {
		writeError(w, http.StatusServiceUnavailable, "Replay unavailable")
		return
	}
	err := h.replayer.Replay(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Recording not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "replaying"})
}
