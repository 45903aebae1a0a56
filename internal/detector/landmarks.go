// Package detector provides hand landmark detection for the gesture pipeline.
package detector

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Finger identifies one of the four non-thumb fingers.
type Finger int

const (
	Index Finger = iota
	Middle
	Ring
	Pinky
)

// Fingers lists the non-thumb fingers in palm order.
var Fingers = [...]Finger{Index, Middle, Ring, Pinky}

var fingerJoints = [...][2]int{
	Index:  {IndexMCP, IndexTip},
	Middle: {MiddleMCP, MiddleTip},
	Ring:   {RingMCP, RingTip},
	Pinky:  {PinkyMCP, PinkyTip},
}

// Point3D is a landmark in normalized image space: x and y in [0,1]
// from the top-left corner, z is depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns the point as a gonum vector.
func (p Point3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Distance returns the Euclidean distance between two landmarks.
func (h *HandLandmarks) Distance(a, b int) float64 {
	return r3.Norm(r3.Sub(h.Points[a].Vec(), h.Points[b].Vec()))
}

// PalmSize is the wrist to middle-finger MCP distance, the scale every
// ratio in the pose deriver is measured against.
func (h *HandLandmarks) PalmSize() float64 {
	return h.Distance(Wrist, MiddleMCP)
}

// Extension returns how far a finger reaches from the wrist relative to
// its knuckle. Curled fingers sit near 1, straight fingers well above 2.
// Returns 0 when the knuckle coincides with the wrist.
func (h *HandLandmarks) Extension(f Finger) float64 {
	joints := fingerJoints[f]
	knuckle := h.Distance(Wrist, joints[0])
	if knuckle < 1e-10 {
		return 0
	}
	return h.Distance(Wrist, joints[1]) / knuckle
}

// Midpoint returns the point halfway between two landmarks.
func (h *HandLandmarks) Midpoint(a, b int) r3.Vec {
	return r3.Scale(0.5, r3.Add(h.Points[a].Vec(), h.Points[b].Vec()))
}

// Normalize returns a copy translated so the wrist is at the origin and
// scaled so the palm size is 1. Returns nil for a nil hand.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist].Vec()
	for i := 0; i < NumLandmarks; i++ {
		d := r3.Sub(h.Points[i].Vec(), wrist)
		normalized.Points[i] = Point3D{X: d.X, Y: d.Y, Z: d.Z}
	}

	scale := h.PalmSize()
	if scale < 1e-10 {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}

// Primary picks the hand the pipeline follows: the highest scoring one.
// Only one hand drives the formation. Returns nil for an empty slice.
func Primary(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(hands); i++ {
		if hands[i].Score > hands[best].Score {
			best = i
		}
	}
	return &hands[best]
}
