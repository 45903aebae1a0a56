package recording

import (
	"context"
	"time"

	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/gesture"
)

// Step replays sess into c at a fixed tick of dt and returns every frame.
// Samples due at or before a tick are pushed before it; after the last
// sample the hand is reported gone and the loop runs on for tail so the
// formation can settle. With the same controller config and layout seed
// the output is identical on every run.
func Step(c *controller.Controller, sess *Session, dt, tail time.Duration) []controller.Frame {
	if dt <= 0 {
		return nil
	}
	in := c.Inbox()
	in.SetTracking(true)

	end := sess.Duration() + tail
	frames := make([]controller.Frame, 0, int(end/dt)+1)
	next := 0
	ended := false
	for t := time.Duration(0); t <= end; t += dt {
		pushed := false
		for next < len(sess.Samples) && sess.Samples[next].Offset <= t {
			in.PushSample(sess.Samples[next].Pose)
			next++
			pushed = true
		}
		// The final sample gets one tick of its own before the hand
		// is reported gone.
		if next == len(sess.Samples) && !pushed && !ended {
			in.PushSample(nil)
			ended = true
		}
		frames = append(frames, c.Tick(dt))
	}
	return frames
}

// Play pushes sess in real time, honouring the recorded offsets, then
// reports the hand gone. It returns ctx.Err() if cancelled first.
func Play(ctx context.Context, sess *Session, push func(*gesture.HandPoseSample)) error {
	start := time.Now()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for _, smp := range sess.Samples {
		if wait := smp.Offset - time.Since(start); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		push(smp.Pose)
	}
	push(nil)
	return nil
}
