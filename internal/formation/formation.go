// Package formation computes where each photo belongs in the tree, the
// cloud and the zoomed view.
package formation

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// State is the active formation.
type State int

const (
	// Closed gathers photos into a tree silhouette.
	Closed State = iota
	// Exploded scatters photos into a cloud.
	Exploded
	// Zoomed pulls one photo toward the viewer over the cloud.
	Zoomed
)

var stateNames = [...]string{
	Closed:   "CLOSED",
	Exploded: "EXPLODED",
	Zoomed:   "ZOOMED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, n := range stateNames {
		if n == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown formation %q", text)
}

// Pose places a photo in the scene. Rotation is Euler XYZ in radians;
// the zero rotation faces the viewer along +Z.
type Pose struct {
	Position r3.Vec  `json:"position"`
	Rotation r3.Vec  `json:"rotation"`
	Scale    float64 `json:"scale"`
}

// Inert is the pose used when there is nothing to lay out.
var Inert = Pose{}

// NoSelection is passed as selected when no photo is zoomed.
const NoSelection = -1

// goldenAngle spaces successive spiral points so no two line up.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Config holds formation geometry.
type Config struct {
	TreeHeight    float64
	TreeRadius    float64
	TreeBaseY     float64
	TreeTilt      float64
	ClosedScale   float64
	CloudRadius   float64
	ExplodedScale float64
	ZoomPosition  r3.Vec
	ZoomScale     float64
	Seed          uint64
}

// DefaultConfig returns the stock tree and cloud geometry.
func DefaultConfig() Config {
	return Config{
		TreeHeight:    12,
		TreeRadius:    5,
		TreeBaseY:     -6,
		TreeTilt:      0.3,
		ClosedScale:   0.6,
		CloudRadius:   9,
		ExplodedScale: 1.0,
		ZoomPosition:  r3.Vec{Z: 12},
		ZoomScale:     3.5,
		Seed:          0x6175726575,
	}
}

// Engine maps (formation, index, count, selection) to a target pose.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a layout engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// PoseFor returns the target pose of the photo at index among count
// photos. selected is the zoomed index or NoSelection. An empty layout
// or an index outside [0, count) gets the inert pose.
func (e *Engine) PoseFor(state State, index, count, selected int) Pose {
	if count <= 0 || index < 0 || index >= count {
		return Inert
	}

	switch state {
	case Closed:
		return e.closed(index, count)
	case Zoomed:
		if index == selected {
			return e.zoomed()
		}
		return e.exploded(index)
	default:
		return e.exploded(index)
	}
}

// closed walks a golden-angle spiral up a cone. Ring radius shrinks
// linearly to zero at the apex; each photo faces away from the trunk and
// leans back toward the apex by TreeTilt.
func (e *Engine) closed(index, count int) Pose {
	t := (float64(index) + 0.5) / float64(count)
	angle := float64(index) * goldenAngle
	r := e.cfg.TreeRadius * (1 - t)

	return Pose{
		Position: r3.Vec{
			X: r * math.Sin(angle),
			Y: e.cfg.TreeBaseY + t*e.cfg.TreeHeight,
			Z: r * math.Cos(angle),
		},
		Rotation: r3.Vec{X: -e.cfg.TreeTilt, Y: angle},
		Scale:    e.cfg.ClosedScale,
	}
}

// exploded draws a uniform point inside a ball from a PCG stream keyed
// by (seed, index). The count plays no part, so adding photos never
// moves the ones already placed.
func (e *Engine) exploded(index int) Pose {
	rng := rand.New(rand.NewPCG(e.cfg.Seed, uint64(index)))

	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := e.cfg.CloudRadius * math.Cbrt(rng.Float64())
	ring := math.Sqrt(1 - z*z)

	return Pose{
		Position: r3.Vec{
			X: r * ring * math.Cos(phi),
			Y: r * ring * math.Sin(phi),
			Z: r * z,
		},
		Scale: e.cfg.ExplodedScale,
	}
}

func (e *Engine) zoomed() Pose {
	return Pose{
		Position: e.cfg.ZoomPosition,
		Scale:    e.cfg.ZoomScale,
	}
}
