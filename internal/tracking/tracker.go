package tracking

import (
	"bytes"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/aureum/internal/detector"
	"github.com/ayusman/aureum/internal/gesture"
	"github.com/ayusman/aureum/internal/logger"
)

// Config holds capture cadence settings.
type Config struct {
	IdleFPS         int
	ActiveFPS       int
	IdleTimeout     time.Duration
	MotionThreshold float64
	MotionGate      bool // false runs the detector on every frame
}

// DefaultConfig returns the stock cadence: 5 fps idle, 30 fps active.
func DefaultConfig() Config {
	return Config{
		IdleFPS:         5,
		ActiveFPS:       30,
		IdleTimeout:     2 * time.Second,
		MotionThreshold: 1.0,
		MotionGate:      true,
	}
}

// Publisher receives one sample per detector run; nil means no hand.
type Publisher func(*gesture.HandPoseSample)

// Tracker runs the capture loop: read a frame, gate on motion, detect
// landmarks, derive a pose and publish it.
type Tracker struct {
	cfg      Config
	camera   Camera
	detector detector.Detector
	deriver  *Deriver
	publish  Publisher
	log      *zap.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	preview []byte
	seq     uint64
}

// New creates a stopped Tracker.
func New(cfg Config, camera Camera, det detector.Detector, deriver *Deriver, publish Publisher) *Tracker {
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = 5
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = 30
	}
	return &Tracker{
		cfg:      cfg,
		camera:   camera,
		detector: det,
		deriver:  deriver,
		publish:  publish,
		log:      logger.Named("tracking"),
	}
}

// Start opens the camera and launches the capture loop.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopCh != nil {
		return nil
	}
	if err := t.camera.Open(); err != nil {
		return err
	}

	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stopCh, t.done)

	t.log.Info("hand tracking started", zap.Bool("motion_gate", t.cfg.MotionGate))
	return nil
}

// Stop ends the capture loop, closes the camera and publishes "no hand".
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopCh == nil {
		t.mu.Unlock()
		return
	}
	close(t.stopCh)
	done := t.done
	t.stopCh, t.done = nil, nil
	t.mu.Unlock()

	<-done
	t.mu.Lock()
	t.preview = nil
	t.mu.Unlock()
	if err := t.camera.Close(); err != nil {
		t.log.Warn("close camera", zap.Error(err))
	}
	t.publish(nil)
	t.log.Info("hand tracking stopped")
}

// Running reports whether the capture loop is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopCh != nil
}

// Preview returns the latest camera frame as JPEG and its sequence
// number. The slice is never modified after it is returned.
func (t *Tracker) Preview() ([]byte, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.preview, t.seq
}

// Close stops tracking and releases the detector.
func (t *Tracker) Close() error {
	t.Stop()
	return t.detector.Close()
}

func (t *Tracker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	motion := newMotionDetector(t.cfg.MotionThreshold)
	defer motion.Close()
	cadence := NewCadence(t.cfg.IdleTimeout)

	fps := t.cfg.ActiveFPS
	if t.cfg.MotionGate {
		fps = t.cfg.IdleFPS
	}
	t.camera.SetFPS(fps)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	handSeen := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		frame, err := t.camera.ReadFrame()
		if err != nil {
			t.log.Debug("read frame", zap.Error(err))
			handSeen = false
			motion.Reset()
			t.publish(nil)
			continue
		}
		t.storePreview(frame)

		if t.cfg.MotionGate {
			moved, changed := motion.Detect(frame)
			active, switched := cadence.Observe(moved, handSeen, time.Now())
			if switched {
				fps = t.cfg.IdleFPS
				if active {
					fps = t.cfg.ActiveFPS
				}
				t.camera.SetFPS(fps)
				ticker.Reset(time.Second / time.Duration(fps))
				t.log.Debug("cadence changed", zap.Bool("active", active), zap.Int("fps", fps), zap.Float64("changed_pct", changed))
				if !active {
					t.publish(nil)
				}
			}
			if !active {
				frame.Close()
				continue
			}
		}

		hands, err := t.detector.Detect(frame)
		frame.Close()
		if err != nil {
			t.log.Warn("hand detection failed", zap.Error(err))
			handSeen = false
			t.publish(nil)
			continue
		}

		hand := detector.Primary(hands)
		handSeen = hand != nil
		t.publish(t.deriver.Derive(hand))
	}
}

func (t *Tracker) storePreview(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	data := bytes.Clone(buf.GetBytes())
	buf.Close()

	t.mu.Lock()
	t.preview = data
	t.seq++
	t.mu.Unlock()
}
