package controller

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/aureum/internal/formation"
	"github.com/ayusman/aureum/internal/gesture"
)

// PhotoFrame is what the renderer needs to draw one photo.
type PhotoFrame struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Texture  string  `json:"texture"`
	Index    int     `json:"index"`
	Position r3.Vec  `json:"position"`
	Rotation r3.Vec  `json:"rotation"`
	Scale    float64 `json:"scale"`
}

// Frame is a snapshot of the scene after one tick. Frames are values:
// nothing in a Frame aliases controller state.
type Frame struct {
	Seq      uint64          `json:"seq"`
	State    formation.State `json:"state"`
	Gesture  gesture.Gesture `json:"gesture"`
	Tracking bool            `json:"tracking"`
	Selected string          `json:"selected,omitempty"`
	Orbit    Orbit           `json:"orbit"`
	Photos   []PhotoFrame    `json:"photos"`
}

// Photo returns the photo with id, if present.
func (f *Frame) Photo(id string) (PhotoFrame, bool) {
	for _, p := range f.Photos {
		if p.ID == id {
			return p, true
		}
	}
	return PhotoFrame{}, false
}
