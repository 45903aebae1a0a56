package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/texture"
)

// uploadMemory is how much of a multipart form is kept in memory before
// spilling to temp files.
const uploadMemory = 32 << 20

// PhotoHandler handles /api/photos and /api/photos/{id}.
type PhotoHandler struct {
	svc      PhotoService
	maxBytes int64
}

// NewPhotoHandler creates a PhotoHandler. maxBytes caps a whole request
// body; zero means no cap.
func NewPhotoHandler(svc PhotoService, maxBytes int64) *PhotoHandler {
	return &PhotoHandler{svc: svc, maxBytes: maxBytes}
}

// ServeHTTP routes collection and item requests.
func (h *PhotoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/photos"), "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.upload(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

type listPhotosResponse struct {
	Photos []controller.PhotoFrame `json:"photos"`
	Count  int                     `json:"count"`
}

type rejectedUpload struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type uploadResponse struct {
	Accepted []string         `json:"accepted"`
	Rejected []rejectedUpload `json:"rejected,omitempty"`
	Stats    texture.Stats    `json:"stats"`
}

// list handles GET /api/photos.
func (h *PhotoHandler) list(w http.ResponseWriter, r *http.Request) {
	f := h.svc.LatestFrame()
	photos := f.Photos
	if photos == nil {
		photos = []controller.PhotoFrame{}
	}
	writeJSON(w, http.StatusOK, listPhotosResponse{Photos: photos, Count: len(photos)})
}

// get handles GET /api/photos/{id}.
func (h *PhotoHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	f := h.svc.LatestFrame()
	p, ok := f.Photo(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Photo not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// delete handles DELETE /api/photos/{id}. Removal happens on the next
// frame, so the response is 202; ids unknown by then are ignored.
func (h *PhotoHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.RemovePhoto(id); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "removing"})
}

// upload handles POST /api/photos. It takes either a multipart form with
// one or more "files" parts, or a raw image body named by ?name=.
// Decoding is asynchronous; accepted files appear in a later frame.
func (h *PhotoHandler) upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		if r.ContentLength > h.maxBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var resp uploadResponse
	var err error
	if mediaType == "multipart/form-data" {
		resp, err = h.uploadMultipart(r)
	} else {
		resp, err = h.uploadRaw(r)
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp.Stats = h.svc.UploadStats()
	switch {
	case len(resp.Accepted) > 0:
		writeJSON(w, http.StatusAccepted, resp)
	case len(resp.Rejected) > 0:
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		writeError(w, http.StatusBadRequest, "No files in request")
	}
}

func (h *PhotoHandler) uploadMultipart(r *http.Request) (uploadResponse, error) {
	var resp uploadResponse
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		return resp, err
	}
	defer r.MultipartForm.RemoveAll()

	for _, fh := range r.MultipartForm.File["files"] {
		name := path.Base(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			resp.Rejected = append(resp.Rejected, rejectedUpload{File: name, Error: err.Error()})
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			resp.Rejected = append(resp.Rejected, rejectedUpload{File: name, Error: err.Error()})
			continue
		}
		h.submit(&resp, name, data)
	}
	return resp, nil
}

func (h *PhotoHandler) uploadRaw(r *http.Request) (uploadResponse, error) {
	var resp uploadResponse
	name := r.URL.Query().Get("name")
	if name == "" {
		return resp, fmt.Errorf("raw upload needs a ?name= parameter")
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return resp, err
	}
	if len(data) == 0 {
		return resp, nil
	}
	h.submit(&resp, path.Base(name), data)
	return resp, nil
}

func (h *PhotoHandler) submit(resp *uploadResponse, name string, data []byte) {
	if err := h.svc.Upload(name, data); err != nil {
		resp.Rejected = append(resp.Rejected, rejectedUpload{File: name, Error: err.Error()})
		return
	}
	resp.Accepted = append(resp.Accepted, name)
}
