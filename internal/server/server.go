// Package server provides the HTTP server for the Aureum photo formation viewer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/logger"
	"github.com/ayusman/aureum/internal/recording"
	"github.com/ayusman/aureum/internal/server/api"
	"github.com/ayusman/aureum/internal/texture"
)

// Engine is the running scene as seen by HTTP clients.
type Engine interface {
	LatestFrame() controller.Frame
	Subscribe() (<-chan controller.Frame, func())
	Preview() ([]byte, uint64)

	Upload(source string, data []byte) error
	RemovePhoto(id string) error
	UploadStats() texture.Stats
	Texture(id string) ([]byte, bool, error)

	SetTracking(enabled bool) error
	Tracking() bool

	Replay(id string) error
	StopReplay()
	Replaying() bool
}

// Config holds the server configuration.
type Config struct {
	StaticDir      string
	Engine         Engine
	Recorder       *recording.Recorder
	MaxUploadBytes int64
}

// Server represents the HTTP server for the Aureum application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    *zap.Logger

	http   *http.Server
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    logger.Named("server"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if e := s.config.Engine; e != nil {
		photos := api.NewPhotoHandler(e, s.config.MaxUploadBytes)
		s.mux.Handle("/api/photos", photos)
		s.mux.Handle("/api/photos/", photos)
		s.mux.Handle("/api/textures/", api.NewTextureHandler(e))
		s.mux.Handle("/api/state", api.NewStateHandler(e))
		s.mux.Handle("/api/tracking", api.NewTrackingHandler(e))
		s.mux.Handle("/api/frames", NewFramesHandler(e))
		s.mux.Handle("/api/stream", NewStreamHandler(e))
	}

	if s.config.Recorder != nil {
		var replayer api.Replayer
		if s.config.Engine != nil {
			replayer = s.config.Engine
		}
		recordings := api.NewRecordingHandler(s.config.Recorder, replayer)
		s.mux.Handle("/api/recordings", recordings)
		s.mux.Handle("/api/recordings/", recordings)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if e := s.config.Engine; e != nil {
		f := e.LatestFrame()
		response["state"] = f.State
		response["photos"] = len(f.Photos)
		response["tracking"] = f.Tracking
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Serve accepts connections on ln until Shutdown is called. It returns nil
// after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, cancels streaming requests and
// waits for open requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.http.Shutdown(ctx)
}
