package tracking

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/aureum/internal/detector"
	"github.com/ayusman/aureum/internal/gesture"
)

// DeriveConfig holds the thresholds and world extents used to turn
// landmarks into a HandPoseSample.
type DeriveConfig struct {
	OpenRatio   float64 // every finger extension at or above this is open
	CurlRatio   float64 // every finger extension at or below this is a fist
	PinchRatio  float64 // thumb-index gap over palm size at or below this is a pinch
	WorldWidth  float64
	WorldHeight float64
	WorldDepth  float64
}

// DefaultDeriveConfig returns thresholds tuned for MediaPipe output.
func DefaultDeriveConfig() DeriveConfig {
	return DeriveConfig{
		OpenRatio:   1.6,
		CurlRatio:   1.4,
		PinchRatio:  0.25,
		WorldWidth:  20,
		WorldHeight: 12,
		WorldDepth:  10,
	}
}

// Deriver converts detector landmarks into pose samples.
type Deriver struct {
	cfg DeriveConfig
}

// NewDeriver creates a Deriver.
func NewDeriver(cfg DeriveConfig) *Deriver {
	return &Deriver{cfg: cfg}
}

// Derive returns the pose sample for hand, or nil when hand is nil.
// A hand with zero palm size yields a sample with no flags set.
func (d *Deriver) Derive(hand *detector.HandLandmarks) *gesture.HandPoseSample {
	if hand == nil {
		return nil
	}

	sample := &gesture.HandPoseSample{
		PinchAnchor: d.toWorld(hand.Midpoint(detector.ThumbTip, detector.IndexTip)),
		Position:    d.toWorld(palmCentre(hand)),
		Rotation:    d.rotation(hand),
	}

	palm := hand.PalmSize()
	if palm < 1e-9 {
		return sample
	}

	open, curled := true, true
	for _, f := range detector.Fingers {
		r := hand.Extension(f)
		if r < d.cfg.OpenRatio {
			open = false
		}
		if r > d.cfg.CurlRatio {
			curled = false
		}
	}
	sample.Open = open
	sample.Fist = curled
	sample.Pinch = hand.Distance(detector.ThumbTip, detector.IndexTip)/palm <= d.cfg.PinchRatio

	return sample
}

// toWorld maps normalized image coordinates into scene space: the image
// is mirrored so the scene follows the hand like a mirror, y points up
// and positive z comes toward the viewer.
func (d *Deriver) toWorld(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: (0.5 - p.X) * d.cfg.WorldWidth,
		Y: (0.5 - p.Y) * d.cfg.WorldHeight,
		Z: -p.Z * d.cfg.WorldDepth,
	}
}

// rotation returns pitch, yaw and roll of the palm in world space.
// A flat hand facing the camera with fingers up is (0, 0, 0).
func (d *Deriver) rotation(hand *detector.HandLandmarks) r3.Vec {
	wrist := d.toWorld(hand.Points[detector.Wrist].Vec())
	up := r3.Sub(d.toWorld(hand.Points[detector.MiddleMCP].Vec()), wrist)
	across := r3.Sub(
		d.toWorld(hand.Points[detector.IndexMCP].Vec()),
		d.toWorld(hand.Points[detector.PinkyMCP].Vec()),
	)

	if r3.Norm(up) < 1e-9 {
		return r3.Vec{}
	}
	return r3.Vec{
		X: math.Atan2(up.Z, math.Hypot(up.X, up.Y)),
		Y: math.Atan2(across.Z, math.Hypot(across.X, across.Y)),
		Z: math.Atan2(-up.X, up.Y),
	}
}

func palmCentre(hand *detector.HandLandmarks) r3.Vec {
	sum := hand.Points[detector.Wrist].Vec()
	for _, i := range []int{detector.IndexMCP, detector.MiddleMCP, detector.RingMCP, detector.PinkyMCP} {
		sum = r3.Add(sum, hand.Points[i].Vec())
	}
	return r3.Scale(1.0/5, sum)
}
