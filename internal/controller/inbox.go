package controller

import (
	"errors"
	"sync"

	"github.com/ayusman/aureum/internal/gesture"
	"github.com/ayusman/aureum/internal/registry"
)

// ErrInboxFull is returned when the upload or removal backlog is full.
var ErrInboxFull = errors.New("controller inbox full")

// Upload is a decoded photo waiting to join the registry.
type Upload struct {
	Source  string
	Texture registry.Texture
}

// Inbox buffers input arriving from other goroutines until the next
// tick. The hand sample is a single latest-value slot; uploads and
// removals are bounded queues.
type Inbox struct {
	mu       sync.Mutex
	sample   *gesture.HandPoseSample
	fresh    bool
	tracking bool

	uploads  chan Upload
	removals chan string
}

func newInbox(backlog int) *Inbox {
	if backlog < 1 {
		backlog = 1
	}
	return &Inbox{
		uploads:  make(chan Upload, backlog),
		removals: make(chan string, backlog),
	}
}

// PushSample replaces the latest hand sample. nil reports no hand.
// Samples are ignored while tracking is disabled.
func (in *Inbox) PushSample(s *gesture.HandPoseSample) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.tracking {
		return
	}
	in.sample = s
	in.fresh = true
}

// SetTracking enables or disables hand input. Disabling drops the
// pending sample; the next tick classifies as no hand.
func (in *Inbox) SetTracking(enabled bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.tracking = enabled
	if !enabled {
		in.sample = nil
		in.fresh = false
	}
}

// Tracking reports whether hand input is enabled.
func (in *Inbox) Tracking() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.tracking
}

// PushUpload queues a decoded photo. It never blocks.
func (in *Inbox) PushUpload(u Upload) error {
	select {
	case in.uploads <- u:
		return nil
	default:
		return ErrInboxFull
	}
}

// PushRemoval queues removal of the entity with id. It never blocks.
func (in *Inbox) PushRemoval(id string) error {
	select {
	case in.removals <- id:
		return nil
	default:
		return ErrInboxFull
	}
}

// take returns the latest sample, whether it arrived since the previous
// take, and the tracking flag.
func (in *Inbox) take() (*gesture.HandPoseSample, bool, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	fresh := in.fresh
	in.fresh = false
	return in.sample, fresh, in.tracking
}

// drainUploads returns the uploads queued when it was called.
func (in *Inbox) drainUploads() []Upload {
	n := len(in.uploads)
	if n == 0 {
		return nil
	}
	out := make([]Upload, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, <-in.uploads)
	}
	return out
}

func (in *Inbox) drainRemovals() []string {
	n := len(in.removals)
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, <-in.removals)
	}
	return out
}
