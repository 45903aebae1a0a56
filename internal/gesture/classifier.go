package gesture

import "time"

// Classifier debounces raw classifications. A new gesture is accepted
// once it has been the raw result continuously for the hold duration,
// measured from the frame deltas passed to Classify.
//
// Alongside the accepted gesture it keeps a second debounce fed only by
// hand samples. That one survives tracking dropouts and drives
// Released, so a pinch that blinks out for a frame is not read as a
// release when the hand comes back.
//
// Classifier is not safe for concurrent use; the render loop owns it.
type Classifier struct {
	hold time.Duration

	out      debounce
	hand     debounce
	released bool
}

type debounce struct {
	current   Gesture
	candidate Gesture
	pending   bool
	heldFor   time.Duration
}

func (d *debounce) step(raw Gesture, dt, hold time.Duration) {
	if raw == d.current {
		d.drop()
		return
	}

	if d.pending && raw == d.candidate {
		d.heldFor += dt
	} else {
		d.candidate = raw
		d.pending = true
		d.heldFor = 0
	}

	if d.heldFor >= hold {
		d.current = raw
		d.drop()
	}
}

func (d *debounce) drop() {
	d.pending = false
	d.heldFor = 0
}

// NewClassifier creates a classifier starting at None.
func NewClassifier(hold time.Duration) *Classifier {
	return &Classifier{hold: hold}
}

// Classify folds one frame into the debounce and returns the accepted
// gesture. dt is the time since the previous call. A nil sample returns
// None at once and discards any pending candidate.
func (c *Classifier) Classify(sample *HandPoseSample, dt time.Duration) Gesture {
	c.released = false

	if sample == nil {
		c.out.current = None
		c.out.drop()
		c.hand.drop()
		return None
	}

	raw := Raw(sample)

	prev := c.hand.current
	c.hand.step(raw, dt, c.hold)
	c.released = prev == Pinch && c.hand.current == None

	c.out.step(raw, dt, c.hold)
	return c.out.current
}

// Current returns the last accepted gesture.
func (c *Classifier) Current() Gesture {
	return c.out.current
}

// Released reports whether the last Classify call accepted a visible
// hand letting go of a pinch. Losing the hand is never a release.
func (c *Classifier) Released() bool {
	return c.released
}

// Reset forces None and forgets the hand, for when tracking is turned
// off. It does not report a release.
func (c *Classifier) Reset() {
	c.out = debounce{}
	c.hand = debounce{}
	c.released = false
}
