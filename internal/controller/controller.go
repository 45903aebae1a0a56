// Package controller runs the formation state machine and eases every
// photo toward its target pose once per frame.
package controller

import (
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/aureum/internal/formation"
	"github.com/ayusman/aureum/internal/gesture"
	"github.com/ayusman/aureum/internal/logger"
	"github.com/ayusman/aureum/internal/registry"
)

// Config holds state machine and animation settings.
type Config struct {
	Hold       time.Duration // gesture debounce
	Grace      time.Duration // how long a hand sample stays valid without a fresh one
	EaseRate   float64       // per second
	Epsilon    float64       // snap distance
	SpawnScale float64       // scale a new photo grows from
	MaxYaw     float64       // orbit limits in radians
	MaxPitch   float64
	ReachX     float64 // hand offset from centre giving full yaw
	ReachY     float64 // hand offset from centre giving full pitch
	Backlog    int     // queued uploads and removals
}

// DefaultConfig returns settings for a 60 fps loop fed by a 30 fps tracker.
func DefaultConfig() Config {
	return Config{
		Hold:       150 * time.Millisecond,
		Grace:      2 * time.Second / 30,
		EaseRate:   4.0,
		Epsilon:    1e-4,
		SpawnScale: 0,
		MaxYaw:     0.8,
		MaxPitch:   0.4,
		ReachX:     10,
		ReachY:     6,
		Backlog:    64,
	}
}

// Controller owns the formation state, the selection and the registry.
// Other goroutines talk to it only through its Inbox; everything else
// must be called from the goroutine that calls Tick.
type Controller struct {
	cfg        Config
	inbox      *Inbox
	layout     *formation.Engine
	reg        *registry.Registry
	classifier *gesture.Classifier
	log        *zap.Logger

	state    formation.State
	selected string
	gesture  gesture.Gesture
	dirty    bool
	decided  bool // a formation change already happened this tick
	seq      uint64

	tracking   bool
	lastSample *gesture.HandPoseSample
	sampleAge  time.Duration

	orbit       Orbit
	orbitTarget Orbit
}

// New creates a controller in the Closed formation with no photos.
func New(cfg Config, layout *formation.Engine) *Controller {
	return &Controller{
		cfg:        cfg,
		inbox:      newInbox(cfg.Backlog),
		layout:     layout,
		reg:        registry.New(),
		classifier: gesture.NewClassifier(cfg.Hold),
		log:        logger.Named("controller"),
		state:      formation.Closed,
	}
}

// Inbox returns the thread-safe input side of the controller.
func (c *Controller) Inbox() *Inbox {
	return c.inbox
}

// Registry exposes the photo entities to the tick goroutine.
func (c *Controller) Registry() *registry.Registry {
	return c.reg
}

// State returns the current formation.
func (c *Controller) State() formation.State {
	return c.state
}

// Selected returns the zoomed entity id, or "" when nothing is zoomed.
func (c *Controller) Selected() string {
	return c.selected
}

// Tick advances the controller by dt: it applies queued uploads and
// removals, classifies the latest hand sample, makes at most one
// formation transition, re-targets if anything changed and eases every
// photo. The returned frame is safe to hand to other goroutines.
func (c *Controller) Tick(dt time.Duration) Frame {
	c.decided = false
	for _, u := range c.inbox.drainUploads() {
		c.spawn(u)
	}
	for _, id := range c.inbox.drainRemovals() {
		c.remove(id)
	}

	sample := c.resolveSample(dt)
	c.gesture = c.classifier.Classify(sample, dt)
	c.transition(c.gesture, sample)

	if sample != nil {
		c.orbitTarget = c.orbitFor(sample.Position)
	}
	if c.dirty {
		c.retarget()
	}

	alpha := easeAlpha(c.cfg.EaseRate, dt)
	c.reg.ForEach(func(e *registry.Entity) {
		e.Current = easePose(e.Current, e.Target, alpha, c.cfg.Epsilon)
	})
	c.orbit = easeOrbit(c.orbit, c.orbitTarget, alpha, c.cfg.Epsilon)

	c.seq++
	return c.frame()
}

// Close releases every texture, including uploads still queued.
func (c *Controller) Close() {
	for _, u := range c.inbox.drainUploads() {
		if u.Texture != nil {
			u.Texture.Release()
		}
	}
	c.reg.Clear()
	c.selected = ""
}

// resolveSample applies the tracking flag and the grace period. A fresh
// sample is used as is; a stale one is reused until it is older than
// Grace, after which the hand counts as gone.
func (c *Controller) resolveSample(dt time.Duration) *gesture.HandPoseSample {
	sample, fresh, tracking := c.inbox.take()

	if !tracking {
		if c.tracking {
			c.log.Info("hand tracking disabled")
			c.classifier.Reset()
		}
		c.tracking = false
		c.lastSample = nil
		return nil
	}
	c.tracking = true

	if fresh {
		c.lastSample = sample
		c.sampleAge = 0
		return sample
	}

	c.sampleAge += dt
	if c.sampleAge > c.cfg.Grace {
		c.lastSample = nil
	}
	return c.lastSample
}

// transition applies the formation table. Gestures are level triggered:
// a held gesture is re-evaluated every frame, so ZOOMED with a held fist
// goes to EXPLODED and then to CLOSED on the following frame.
func (c *Controller) transition(g gesture.Gesture, sample *gesture.HandPoseSample) {
	if c.decided {
		return
	}
	switch c.state {
	case formation.Closed:
		if g == gesture.Open {
			c.setState(formation.Exploded, g)
		}

	case formation.Exploded:
		switch g {
		case gesture.Fist:
			c.setState(formation.Closed, g)
		case gesture.Pinch:
			e := c.nearest(sample.PinchAnchor)
			if e == nil {
				return
			}
			c.selected = e.ID
			c.setState(formation.Zoomed, g)
		}

	case formation.Zoomed:
		switch {
		case g == gesture.Fist, g == gesture.Open:
			c.setState(formation.Exploded, g)
		case c.classifier.Released():
			c.setState(formation.Exploded, g)
		}
	}
}

func (c *Controller) setState(next formation.State, g gesture.Gesture) {
	c.log.Info("formation changed",
		zap.Stringer("from", c.state),
		zap.Stringer("to", next),
		zap.Stringer("gesture", g),
		zap.String("selected", c.selected),
	)
	if next != formation.Zoomed {
		c.selected = ""
	}
	c.state = next
	c.dirty = true
	c.decided = true
}

// nearest returns the entity drawn closest to anchor. Positions are
// compared after the current orbit, which is how the viewer sees them.
// Ties go to the lower index. Returns nil for an empty registry.
func (c *Controller) nearest(anchor r3.Vec) *registry.Entity {
	var best *registry.Entity
	bestDist := math.Inf(1)
	c.reg.ForEach(func(e *registry.Entity) {
		d := r3.Norm(r3.Sub(c.orbit.Apply(e.Current.Position), anchor))
		if d < bestDist {
			best, bestDist = e, d
		}
	})
	return best
}

func (c *Controller) spawn(u Upload) {
	e := &registry.Entity{Source: u.Source, Texture: u.Texture}
	if err := c.reg.Add(e); err != nil {
		c.log.Warn("photo rejected", zap.String("source", u.Source), zap.Error(err))
		if u.Texture != nil {
			u.Texture.Release()
		}
		return
	}

	spawn := c.layout.PoseFor(formation.Exploded, e.Index, c.reg.Count(), formation.NoSelection)
	spawn.Scale = c.cfg.SpawnScale
	e.Current = spawn
	c.dirty = true

	c.log.Debug("photo added",
		zap.String("id", e.ID),
		zap.String("source", e.Source),
		zap.Int("index", e.Index),
	)
}

func (c *Controller) remove(id string) {
	if !c.reg.Remove(id) {
		c.log.Debug("remove of unknown photo", zap.String("id", id))
		return
	}
	if id == c.selected {
		c.setState(formation.Exploded, c.gesture)
	}
	c.dirty = true
}

func (c *Controller) selectedIndex() int {
	if c.selected == "" {
		return formation.NoSelection
	}
	e, ok := c.reg.Get(c.selected)
	if !ok {
		return formation.NoSelection
	}
	return e.Index
}

func (c *Controller) retarget() {
	count := c.reg.Count()
	sel := c.selectedIndex()
	c.reg.ForEach(func(e *registry.Entity) {
		e.Target = c.layout.PoseFor(c.state, e.Index, count, sel)
	})
	c.dirty = false
}

func (c *Controller) orbitFor(pos r3.Vec) Orbit {
	var o Orbit
	if c.cfg.ReachX > 0 {
		o.Yaw = clamp(pos.X/c.cfg.ReachX, -1, 1) * c.cfg.MaxYaw
	}
	if c.cfg.ReachY > 0 {
		o.Pitch = clamp(pos.Y/c.cfg.ReachY, -1, 1) * c.cfg.MaxPitch
	}
	return o
}

func (c *Controller) frame() Frame {
	f := Frame{
		Seq:      c.seq,
		State:    c.state,
		Gesture:  c.gesture,
		Tracking: c.tracking,
		Selected: c.selected,
		Orbit:    c.orbit,
		Photos:   make([]PhotoFrame, 0, c.reg.Count()),
	}
	c.reg.ForEach(func(e *registry.Entity) {
		p := PhotoFrame{
			ID:       e.ID,
			Source:   e.Source,
			Index:    e.Index,
			Position: e.Current.Position,
			Rotation: e.Current.Rotation,
			Scale:    e.Current.Scale,
		}
		if e.Texture != nil {
			p.Texture = e.Texture.ID()
		}
		f.Photos = append(f.Photos, p)
	})
	return f
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
