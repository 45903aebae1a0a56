// Package registry holds the photo entities and their poses.
package registry

import (
	"errors"

	"github.com/google/uuid"

	"github.com/ayusman/aureum/internal/formation"
)

// ErrDuplicate is returned when adding an entity whose ID is taken.
var ErrDuplicate = errors.New("entity already registered")

// Texture is an opaque renderable handle. The registry never looks
// inside it; it only releases it when the owning entity goes away.
type Texture interface {
	ID() string
	Release()
}

// Entity is one photo in the scene.
type Entity struct {
	ID      string
	Source  string // original file name
	Texture Texture
	Index   int // 0..Count()-1, compacted on removal
	Current formation.Pose
	Target  formation.Pose
}

// Registry owns the photo entities. Indices are contiguous from zero in
// insertion order.
//
// Registry is not safe for concurrent use; only the render loop touches it.
type Registry struct {
	entities []*Entity
	byID     map[string]*Entity
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*Entity)}
}

// Add appends e with the next index. An empty ID is filled with a new
// UUID. The registry takes ownership of e.Texture.
func (r *Registry) Add(e *Entity) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, ok := r.byID[e.ID]; ok {
		return ErrDuplicate
	}

	e.Index = len(r.entities)
	r.entities = append(r.entities, e)
	r.byID[e.ID] = e
	return nil
}

// Remove deletes the entity with id, releases its texture and shifts
// later entities down one index. Returns false if id is unknown.
func (r *Registry) Remove(id string) bool {
	e, ok := r.byID[id]
	if !ok {
		return false
	}

	copy(r.entities[e.Index:], r.entities[e.Index+1:])
	r.entities[len(r.entities)-1] = nil
	r.entities = r.entities[:len(r.entities)-1]
	for i := e.Index; i < len(r.entities); i++ {
		r.entities[i].Index = i
	}
	delete(r.byID, id)

	if e.Texture != nil {
		e.Texture.Release()
	}
	return true
}

// Get returns the entity with id.
func (r *Registry) Get(id string) (*Entity, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// At returns the entity at index, or nil if out of range.
func (r *Registry) At(index int) *Entity {
	if index < 0 || index >= len(r.entities) {
		return nil
	}
	return r.entities[index]
}

// ForEach calls fn for every entity in index order.
func (r *Registry) ForEach(fn func(*Entity)) {
	for _, e := range r.entities {
		fn(e)
	}
}

// Count returns the number of entities.
func (r *Registry) Count() int {
	return len(r.entities)
}

// Clear removes every entity and releases its texture.
func (r *Registry) Clear() {
	for _, e := range r.entities {
		if e.Texture != nil {
			e.Texture.Release()
		}
	}
	r.entities = nil
	clear(r.byID)
}
