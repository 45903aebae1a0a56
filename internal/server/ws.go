package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/logger"
)

const (
	// frameInterval caps frames sent to one client at about 30 per second.
	frameInterval = 33 * time.Millisecond
	writeWait     = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// FrameSource is where a frames client gets its snapshots.
type FrameSource interface {
	Subscribe() (<-chan controller.Frame, func())
}

// FramesHandler pushes render frames to WebSocket clients as JSON. Slow
// clients skip frames rather than queueing them.
type FramesHandler struct {
	src      FrameSource
	interval time.Duration
	log      *zap.Logger
}

// NewFramesHandler creates a FramesHandler reading from src.
func NewFramesHandler(src FrameSource) *FramesHandler {
	return &FramesHandler{
		src:      src,
		interval: frameInterval,
		log:      logger.Named("frames"),
	}
}

// ServeHTTP upgrades the request and streams frames until the client
// disconnects, the source closes or the server shuts down.
func (h *FramesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	frames, cancel := h.src.Subscribe()
	defer cancel()

	// Clients never send anything we act on; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last time.Time
	for {
		select {
		case <-r.Context().Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case f, ok := <-frames:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			if time.Since(last) < h.interval {
				continue
			}
			last = time.Now()

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				h.log.Debug("frame write failed", zap.Error(err))
				return
			}
		}
	}
}
