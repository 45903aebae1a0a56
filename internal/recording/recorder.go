package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/aureum/internal/gesture"
	"github.com/ayusman/aureum/internal/logger"
	"github.com/ayusman/aureum/internal/store"
)

// MaxSamples caps one session at ten minutes of 30 fps tracking.
const MaxSamples = 30 * 60 * 10

var (
	// ErrNotRecording is returned by Stop when no session is open.
	ErrNotRecording = errors.New("not recording")
	// ErrAlreadyRecording is returned by Start while a session is open.
	ErrAlreadyRecording = errors.New("already recording")
)

// Recorder buffers tracker samples while a session is open and writes the
// session to the store when it stops. Observe is safe to call from the
// tracker goroutine.
type Recorder struct {
	store *store.Store
	now   func() time.Time
	log   *zap.Logger

	mu      sync.Mutex
	active  bool
	id      string
	name    string
	started time.Time
	samples []Sample
	dropped int
}

// NewRecorder creates a Recorder persisting to st.
func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{
		store: st,
		now:   time.Now,
		log:   logger.Named("recording"),
	}
}

// Start opens a new session and returns its ID. An empty name gets one
// derived from the start time.
func (r *Recorder) Start(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return "", ErrAlreadyRecording
	}

	r.started = r.now()
	if name == "" {
		name = "session " + r.started.Format(time.DateTime)
	}
	r.active = true
	r.id = uuid.NewString()
	r.name = name
	r.samples = r.samples[:0]
	r.dropped = 0

	r.log.Info("recording started", zap.String("id", r.id), zap.String("name", name))
	return r.id, nil
}

// Observe appends s to the open session. It is a no-op when idle.
func (r *Recorder) Observe(s *gesture.HandPoseSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}
	if len(r.samples) >= MaxSamples {
		r.dropped++
		return
	}

	smp := Sample{Offset: r.now().Sub(r.started)}
	if s != nil {
		pose := *s
		smp.Pose = &pose
	}
	r.samples = append(r.samples, smp)
}

// Active returns the open session's ID, if any.
func (r *Recorder) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id, r.active
}

// Stop closes the open session and saves it.
func (r *Recorder) Stop() (*store.Recording, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	rec := &store.Recording{
		ID:        r.id,
		Name:      r.name,
		StartedAt: r.started,
		Duration:  r.now().Sub(r.started),
	}
	samples := append([]Sample(nil), r.samples...)
	dropped := r.dropped
	r.active = false
	r.id = ""
	r.samples = r.samples[:0]
	r.mu.Unlock()

	rows, err := toStoreSamples(samples)
	if err != nil {
		return nil, err
	}
	if err := r.store.Recordings().Create(rec, rows); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}

	r.log.Info("recording saved",
		zap.String("id", rec.ID),
		zap.Int("samples", rec.Samples),
		zap.Duration("duration", rec.Duration),
		zap.Int("dropped", dropped),
	)
	return rec, nil
}

// Load reads a saved session.
func (r *Recorder) Load(id string) (*Session, error) {
	rec, err := r.store.Recordings().GetByID(id)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.Samples().GetByRecordingID(id)
	if err != nil {
		return nil, err
	}
	return fromStore(rec, rows)
}

// Import saves an externally produced session under a fresh ID.
func (r *Recorder) Import(s *Session) (*store.Recording, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	rows, err := toStoreSamples(s.Samples)
	if err != nil {
		return nil, err
	}
	rec := &store.Recording{
		ID:        uuid.NewString(),
		Name:      s.Name,
		StartedAt: s.StartedAt,
		Duration:  s.Duration(),
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = r.now()
	}
	if err := r.store.Recordings().Create(rec, rows); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}
	return rec, nil
}

// List returns every saved recording, newest first.
func (r *Recorder) List() ([]*store.Recording, error) {
	return r.store.Recordings().List()
}

// Delete removes a saved recording.
func (r *Recorder) Delete(id string) error {
	return r.store.Recordings().Delete(id)
}
