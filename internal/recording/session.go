// Package recording captures hand-pose sessions from the tracker and
// replays them into a controller, either live or at a fixed tick for
// reproducible runs.
package recording

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ayusman/aureum/internal/gesture"
	"github.com/ayusman/aureum/internal/store"
)

// Sample is one tracker output at an offset from the session start.
// A nil Pose records that no hand was visible.
type Sample struct {
	Offset time.Duration
	Pose   *gesture.HandPoseSample
}

type sampleJSON struct {
	OffsetMS float64                 `json:"offset_ms"`
	Pose     *gesture.HandPoseSample `json:"pose"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		OffsetMS: float64(s.Offset) / float64(time.Millisecond),
		Pose:     s.Pose,
	})
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	var w sampleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Offset = time.Duration(math.Round(w.OffsetMS * float64(time.Millisecond)))
	s.Pose = w.Pose
	return nil
}

// Session is a complete recording.
type Session struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
	Samples   []Sample  `json:"samples"`
}

// Duration is the offset of the last sample.
func (s *Session) Duration() time.Duration {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[len(s.Samples)-1].Offset
}

// Validate checks that offsets are non-negative and never go backwards.
func (s *Session) Validate() error {
	var prev time.Duration
	for i, smp := range s.Samples {
		if smp.Offset < 0 {
			return fmt.Errorf("sample %d: negative offset %v", i, smp.Offset)
		}
		if smp.Offset < prev {
			return fmt.Errorf("sample %d: offset %v before previous %v", i, smp.Offset, prev)
		}
		prev = smp.Offset
	}
	return nil
}

// ReadSession decodes and validates a JSON session.
func ReadSession(r io.Reader) (*Session, error) {
	var s Session
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// WriteTo encodes the session as indented JSON.
func (s *Session) WriteTo(w io.Writer) (int64, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return 0, err
	}
	n, err := w.Write(append(data, '\n'))
	return int64(n), err
}

func toStoreSamples(samples []Sample) ([]store.Sample, error) {
	out := make([]store.Sample, len(samples))
	for i, s := range samples {
		out[i] = store.Sample{Index: i, Offset: s.Offset}
		if s.Pose == nil {
			continue
		}
		data, err := json.Marshal(s.Pose)
		if err != nil {
			return nil, fmt.Errorf("encode sample %d: %w", i, err)
		}
		out[i].Data = data
	}
	return out, nil
}

func fromStore(rec *store.Recording, rows []store.Sample) (*Session, error) {
	s := &Session{
		ID:        rec.ID,
		Name:      rec.Name,
		StartedAt: rec.StartedAt,
		Samples:   make([]Sample, len(rows)),
	}
	for i, row := range rows {
		s.Samples[i].Offset = row.Offset
		if row.Data == nil {
			continue
		}
		pose := &gesture.HandPoseSample{}
		if err := json.Unmarshal(row.Data, pose); err != nil {
			return nil, fmt.Errorf("decode sample %d: %w", i, err)
		}
		s.Samples[i].Pose = pose
	}
	return s, nil
}
