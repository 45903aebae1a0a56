package detector

import (
	"strconv"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is passed to the model. Only the primary hand drives the
	// formation; tracking a second keeps the primary stable when hands cross.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Args renders the config as command-line arguments for the landmark service.
func (c Config) Args() []string {
	return []string{
		"--max-hands", strconv.Itoa(c.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(c.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackingConf, 'f', -1, 64),
	}
}

// scoreFilter drops hands scored below a threshold.
type scoreFilter struct {
	Detector
	min float64
}

// WithMinScore wraps d so hands scored below min are never reported.
// Low-confidence hands flicker in and out and would defeat the debounce.
func WithMinScore(d Detector, min float64) Detector {
	if min <= 0 {
		return d
	}
	return &scoreFilter{Detector: d, min: min}
}

func (f *scoreFilter) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	hands, err := f.Detector.Detect(frame)
	if err != nil {
		return nil, err
	}
	kept := hands[:0:0]
	for _, h := range hands {
		if h.Score >= f.min {
			kept = append(kept, h)
		}
	}
	return kept, nil
}
