// Package gesture turns hand landmarks into debounced discrete gestures.
package gesture

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Gesture is a discrete classification of the current hand pose.
type Gesture int

const (
	// None means no recognised pose, or no hand at all.
	None Gesture = iota
	// Fist is a closed hand with all four fingers curled.
	Fist
	// Open is a flat palm with all four fingers extended.
	Open
	// Pinch is thumb and index tips touching.
	Pinch
)

var gestureNames = [...]string{
	None:  "NONE",
	Fist:  "FIST",
	Open:  "OPEN",
	Pinch: "PINCH",
}

func (g Gesture) String() string {
	if g < 0 || int(g) >= len(gestureNames) {
		return fmt.Sprintf("Gesture(%d)", int(g))
	}
	return gestureNames[g]
}

// MarshalText encodes the gesture by name.
func (g Gesture) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes a gesture name.
func (g *Gesture) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Parse returns the gesture with the given name.
func Parse(name string) (Gesture, error) {
	for i, n := range gestureNames {
		if n == name {
			return Gesture(i), nil
		}
	}
	return None, fmt.Errorf("unknown gesture %q", name)
}

// HandPoseSample is one reading of the tracked hand in world space.
// A nil *HandPoseSample means no hand was detected.
type HandPoseSample struct {
	Open        bool   `json:"open"`
	Fist        bool   `json:"fist"`
	Pinch       bool   `json:"pinch"`
	PinchAnchor r3.Vec `json:"pinch_anchor"`
	Rotation    r3.Vec `json:"rotation"` // pitch, yaw, roll in radians
	Position    r3.Vec `json:"position"`
}

// Raw classifies a single sample without debounce.
// Pinch wins over fist, fist over open.
func Raw(s *HandPoseSample) Gesture {
	switch {
	case s == nil:
		return None
	case s.Pinch:
		return Pinch
	case s.Fist:
		return Fist
	case s.Open:
		return Open
	default:
		return None
	}
}
