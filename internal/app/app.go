// Package app wires the tracker, the texture pipeline and the formation
// controller together and runs the render loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ayusman/aureum/internal/config"
	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/detector"
	"github.com/ayusman/aureum/internal/formation"
	"github.com/ayusman/aureum/internal/gesture"
	"github.com/ayusman/aureum/internal/logger"
	"github.com/ayusman/aureum/internal/recording"
	"github.com/ayusman/aureum/internal/store"
	"github.com/ayusman/aureum/internal/texture"
	"github.com/ayusman/aureum/internal/tracking"
)

var (
	// ErrNotRunning is returned by operations that need the render loop.
	ErrNotRunning = errors.New("app is not running")
	// ErrStopped is returned by Start after Stop; an App runs once.
	ErrStopped = errors.New("app already stopped")
)

// Options holds the collaborators for New. Nil Camera and Detector are
// replaced with the real device and the MediaPipe service.
type Options struct {
	Config   *config.Config
	Store    *store.Store
	Camera   tracking.Camera
	Detector detector.Detector
}

// App is the running photo formation: one render loop goroutine owns the
// controller; everything else reaches it through the controller inbox.
type App struct {
	cfg      *config.Config
	store    *store.Store
	ctrl     *controller.Controller
	tracker  *tracking.Tracker
	lib      *texture.Library
	uploader *texture.Uploader
	recorder *recording.Recorder
	log      *zap.Logger

	replaying    atomic.Bool
	wantTracking atomic.Bool

	mu           sync.RWMutex
	running      bool
	stopCh       chan struct{}
	done         chan struct{}
	latest       controller.Frame
	subs         map[int]chan controller.Frame
	nextSub      int
	replayCancel context.CancelFunc
	replayDone   chan struct{}
}

// New creates a stopped App.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Store == nil {
		return nil, errors.New("app: store is required")
	}
	cfg := opts.Config

	a := &App{
		cfg:      cfg,
		store:    opts.Store,
		ctrl:     controller.New(controllerConfig(cfg), formation.NewEngine(formationConfig(cfg))),
		lib:      texture.NewLibrary(),
		recorder: recording.NewRecorder(opts.Store),
		log:      logger.Named("app"),
		subs:     make(map[int]chan controller.Frame),
	}
	a.latest = controller.Frame{State: formation.Closed, Photos: []controller.PhotoFrame{}}

	a.uploader = texture.NewUploader(
		texture.NewDecoder(cfg.Upload.MaxBytes, cfg.Upload.MaxDimension),
		a.lib,
		cfg.Upload.Workers,
		cfg.Upload.Queue,
		func(h *texture.Handle) error {
			return a.ctrl.Inbox().PushUpload(controller.Upload{Source: h.Source(), Texture: h})
		},
	)

	camera := opts.Camera
	if camera == nil {
		camera = tracking.NewCamera(cfg.Camera.DeviceID)
	}
	det := opts.Detector
	if det == nil {
		det = a.defaultDetector()
	}
	det = detector.WithMinScore(det, cfg.Detector.MinConfidence)

	a.tracker = tracking.New(trackingConfig(cfg), camera, det, tracking.NewDeriver(deriveConfig(cfg)), a.publishSample)
	return a, nil
}

// defaultDetector tries MediaPipe first and falls back to the mock.
func (a *App) defaultDetector() detector.Detector {
	mp, err := detector.NewMediaPipe(detectorConfig(a.cfg))
	if err != nil {
		a.log.Warn("MediaPipe not available, using mock detector", zap.Error(err))
		return detector.NewMockDetector()
	}
	a.log.Info("using MediaPipe hand detection")
	return mp
}

// publishSample is the tracker's output. Live samples are ignored while a
// recording is being replayed.
func (a *App) publishSample(s *gesture.HandPoseSample) {
	if a.replaying.Load() {
		return
	}
	a.ctrl.Inbox().PushSample(s)
	a.recorder.Observe(s)
}

// Start launches the upload workers and the render loop, then restores
// the saved tracking preference.
func (a *App) Start() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	if a.stopCh != nil {
		a.mu.Unlock()
		return ErrStopped
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	a.uploader.Start()
	go a.renderLoop(a.stopCh, a.done)
	a.mu.Unlock()

	a.log.Info("render loop started", zap.Int("fps", a.cfg.Render.FPS))

	if a.store.Settings().Bool(store.SettingTrackingEnabled, a.cfg.Camera.EnabledOnStart) {
		if err := a.setTracking(true, false); err != nil {
			a.log.Warn("could not restore hand tracking", zap.Error(err))
		}
	}
	return nil
}

// Stop halts tracking, replay, uploads and the render loop, then releases
// every texture. Subscriber channels are closed.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.stopCh)
	done := a.done
	a.mu.Unlock()

	a.StopReplay()
	if err := a.tracker.Close(); err != nil {
		a.log.Warn("close detector", zap.Error(err))
	}
	<-done
	a.uploader.Close()
	a.ctrl.Close()

	if _, err := a.recorder.Stop(); err != nil && !errors.Is(err, recording.ErrNotRecording) {
		a.log.Warn("save open recording", zap.Error(err))
	}

	a.mu.Lock()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
	a.mu.Unlock()

	a.log.Info("app stopped")
}

// Running reports whether the render loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// SetTracking connects or disconnects the hand tracker and remembers the
// choice for the next start.
func (a *App) SetTracking(enabled bool) error {
	return a.setTracking(enabled, true)
}

func (a *App) setTracking(enabled, persist bool) error {
	in := a.ctrl.Inbox()
	a.wantTracking.Store(enabled)
	if enabled {
		in.SetTracking(true)
		if !a.replaying.Load() {
			if err := a.tracker.Start(); err != nil {
				in.SetTracking(false)
				return fmt.Errorf("start tracking: %w", err)
			}
		}
	} else {
		a.StopReplay()
		a.tracker.Stop()
		in.SetTracking(false)
	}

	if persist {
		if err := a.store.Settings().SetBool(store.SettingTrackingEnabled, enabled); err != nil {
			a.log.Warn("save tracking preference", zap.Error(err))
		}
	}
	return nil
}

// Tracking reports whether hand input reaches the controller.
func (a *App) Tracking() bool {
	return a.ctrl.Inbox().Tracking()
}

// Upload queues raw image bytes for decoding. source is the original
// file name.
func (a *App) Upload(source string, data []byte) error {
	if !a.Running() {
		return ErrNotRunning
	}
	return a.uploader.Submit(source, data)
}

// RemovePhoto queues the removal of a photo by id. Unknown ids are
// ignored by the controller.
func (a *App) RemovePhoto(id string) error {
	return a.ctrl.Inbox().PushRemoval(id)
}

// UploadStats reports decode outcomes.
func (a *App) UploadStats() texture.Stats {
	return a.uploader.Stats()
}

// Texture returns the webp encoding of a photo texture.
func (a *App) Texture(id string) ([]byte, bool, error) {
	return a.lib.WebP(id)
}

// Preview returns the latest camera frame as JPEG.
func (a *App) Preview() ([]byte, uint64) {
	return a.tracker.Preview()
}

// Recorder returns the session recorder.
func (a *App) Recorder() *recording.Recorder {
	return a.recorder
}
