package server

import (
	"fmt"
	"net/http"
	"time"
)

// PreviewSource returns the latest camera preview as JPEG with a sequence
// number that changes whenever the image does. A nil image means the
// camera is off.
type PreviewSource interface {
	Preview() ([]byte, uint64)
}

// StreamHandler serves the tracking camera preview as MJPEG.
type StreamHandler struct {
	src      PreviewSource
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler reading from src.
func NewStreamHandler(src PreviewSource) *StreamHandler {
	return &StreamHandler{src: src, interval: 66 * time.Millisecond} // ~15 FPS
}

// ServeHTTP streams preview frames to connected clients. Unchanged
// previews are not resent.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var sent uint64
	for {
		if img, seq := h.src.Preview(); img != nil && seq != sent {
			sent = seq
			if err := writePart(w, img); err != nil {
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, img []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(img)); err != nil {
		return err
	}
	if _, err := w.Write(img); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
