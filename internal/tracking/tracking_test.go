package tracking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/aureum/internal/detector"
	"github.com/ayusman/aureum/internal/gesture"
)

type observation struct {
	motion, hand bool
	at           time.Duration
}

func TestCadence(t *testing.T) {
	start := time.Unix(1000, 0)
	timeout := 2 * time.Second

	tests := []struct {
		name        string
		steps       []observation
		wantActive  bool
		wantChanges int
	}{
		{
			name: "stays idle without motion",
			steps: []observation{
				{false, false, 0}, {false, false, time.Second}, {false, false, 5 * time.Second},
			},
			wantActive: false, wantChanges: 0,
		},
		{
			name: "motion wakes it",
			steps: []observation{
				{false, false, 0}, {true, false, 100 * time.Millisecond},
			},
			wantActive: true, wantChanges: 1,
		},
		{
			name: "falls idle after timeout",
			steps: []observation{
				{true, false, 0}, {false, false, time.Second}, {false, false, 2500 * time.Millisecond},
			},
			wantActive: false, wantChanges: 2,
		},
		{
			name: "held hand keeps it active",
			steps: []observation{
				{true, false, 0}, {false, true, 1500 * time.Millisecond}, {false, true, 3 * time.Second}, {false, false, 4 * time.Second},
			},
			wantActive: true, wantChanges: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCadence(timeout)
			changes := 0
			var active bool
			for _, s := range tt.steps {
				var changed bool
				active, changed = c.Observe(s.motion, s.hand, start.Add(s.at))
				if changed {
					changes++
				}
			}
			if active != tt.wantActive {
				t.Errorf("active = %v, want %v", active, tt.wantActive)
			}
			if c.Active() != active {
				t.Error("Active() disagrees with Observe")
			}
			if changes != tt.wantChanges {
				t.Errorf("changes = %d, want %d", changes, tt.wantChanges)
			}
		})
	}
}

func TestMockCamera(t *testing.T) {
	cam := NewMockCamera()

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen, got %v", err)
	}

	cam.Open()
	if !cam.IsOpen() {
		t.Fatal("expected camera to be open")
	}

	boom := errors.New("unplugged")
	cam.SetError(boom)
	if _, err := cam.ReadFrame(); !errors.Is(err, boom) {
		t.Errorf("expected configured error, got %v", err)
	}
	cam.Close()
	if cam.IsOpen() {
		t.Error("expected camera to be closed")
	}
}

type sampleLog struct {
	mu      sync.Mutex
	samples []*gesture.HandPoseSample
}

func (l *sampleLog) publish(s *gesture.HandPoseSample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, s)
}

func (l *sampleLog) snapshot() []*gesture.HandPoseSample {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*gesture.HandPoseSample(nil), l.samples...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTracker_PublishesSamples(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera()
	det := detector.NewMockDetector()
	det.SetHands(detector.FistLandmarks())
	log := &sampleLog{}

	cfg := DefaultConfig()
	cfg.MotionGate = false
	cfg.ActiveFPS = 100
	tr := New(cfg, cam, det, NewDeriver(DefaultDeriveConfig()), log.publish)

	if err := tr.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !tr.Running() {
		t.Error("expected tracker to be running")
	}

	waitFor(t, func() bool { return len(log.snapshot()) >= 3 })
	for _, s := range log.snapshot()[:3] {
		if s == nil || !s.Fist {
			t.Fatalf("expected fist samples, got %+v", s)
		}
	}

	if jpeg, seq := tr.Preview(); len(jpeg) == 0 || seq == 0 {
		t.Error("expected a preview frame")
	}

	det.SetHands()
	n := len(log.snapshot())
	waitFor(t, func() bool {
		all := log.snapshot()
		return len(all) > n && all[len(all)-1] == nil
	})

	tr.Stop()
	if tr.Running() {
		t.Error("expected tracker to be stopped")
	}
	if cam.IsOpen() {
		t.Error("expected camera closed after Stop")
	}
	all := log.snapshot()
	if all[len(all)-1] != nil {
		t.Error("Stop should publish no hand")
	}
	if jpeg, _ := tr.Preview(); jpeg != nil {
		t.Error("preview should clear after Stop")
	}
}

func TestTracker_SensorErrorsPublishNoHand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera()
	det := detector.NewMockDetector()
	det.SetError(errors.New("service crashed"))
	log := &sampleLog{}

	cfg := DefaultConfig()
	cfg.MotionGate = false
	cfg.ActiveFPS = 100
	tr := New(cfg, cam, det, NewDeriver(DefaultDeriveConfig()), log.publish)
	if err := tr.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer tr.Stop()

	waitFor(t, func() bool { return len(log.snapshot()) >= 2 })
	for _, s := range log.snapshot() {
		if s != nil {
			t.Fatalf("expected only nil samples, got %+v", s)
		}
	}
}

func TestMotionDetector_StaticScene(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := newMotionDetector(1.0)
	defer md.Close()

	a := gocv.NewMatWithSize(FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := gocv.NewMatWithSize(FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	defer b.Close()

	if moved, _ := md.Detect(&a); moved {
		t.Error("first frame only primes the baseline")
	}
	if moved, pct := md.Detect(&b); moved {
		t.Errorf("identical frames reported motion (%.2f%%)", pct)
	}
	if moved, _ := md.Detect(nil); moved {
		t.Error("nil frame cannot move")
	}
}

func TestMotionDetector_ResetPrimesAgain(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := newMotionDetector(1.0)
	defer md.Close()

	dark := gocv.NewMatWithSize(FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	defer dark.Close()
	bright := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	defer bright.Close()

	md.Detect(&dark)
	if moved, _ := md.Detect(&bright); !moved {
		t.Fatal("dark to bright should read as motion")
	}

	md.Detect(&dark)
	md.Reset()
	if moved, _ := md.Detect(&bright); moved {
		t.Error("first frame after Reset only primes the baseline")
	}
	if moved, pct := md.Detect(&bright); moved {
		t.Errorf("identical frames reported motion (%.2f%%)", pct)
	}
}
