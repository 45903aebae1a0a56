package tracking

import (
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	blurKernel    = 21
	diffThreshold = 25
)

// motionDetector reports the share of pixels that changed since the
// previous frame. Not safe for concurrent use; the tracker loop owns it.
type motionDetector struct {
	threshold float64 // percent of pixels
	prev      gocv.Mat
	primed    bool
}

func newMotionDetector(threshold float64) *motionDetector {
	if threshold <= 0 {
		threshold = 1.0
	}
	return &motionDetector{threshold: threshold, prev: gocv.NewMat()}
}

// Detect compares frame with the previous one after converting to gray
// and blurring away sensor noise. The first frame only primes the baseline.
func (m *motionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)

	if !m.primed {
		blurred.CopyTo(&m.prev)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, diffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100
	blurred.CopyTo(&m.prev)

	return changed > m.threshold, changed
}

// Reset forgets the baseline, so the frame after a capture gap primes
// instead of reading as motion.
func (m *motionDetector) Reset() {
	m.primed = false
}

func (m *motionDetector) Close() {
	m.prev.Close()
	m.primed = false
}

// Cadence decides between the idle and active frame rates. Motion or a
// visible hand makes it active; it drops back to idle once neither has
// been seen for the idle timeout. Hand presence keeps the cadence up
// while a gesture is held perfectly still.
type Cadence struct {
	idleTimeout time.Duration
	active      bool
	lastSeen    time.Time
}

// NewCadence creates a Cadence that starts idle.
func NewCadence(idleTimeout time.Duration) *Cadence {
	return &Cadence{idleTimeout: idleTimeout}
}

// Observe records one frame and reports whether the mode is now active
// and whether it changed on this frame.
func (c *Cadence) Observe(motion, hand bool, now time.Time) (active, changed bool) {
	if motion || hand {
		c.lastSeen = now
		if !c.active {
			c.active = true
			return true, true
		}
		return true, false
	}

	if c.active && now.Sub(c.lastSeen) > c.idleTimeout {
		c.active = false
		return false, true
	}
	return c.active, false
}

// Active reports the current mode.
func (c *Cadence) Active() bool {
	return c.active
}
