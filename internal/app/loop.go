package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/aureum/internal/controller"
)

// maxStep bounds one tick after a stall so photos do not teleport.
const maxStep = 100 * time.Millisecond

// renderLoop ticks the controller at the configured frame rate, measuring
// the real time since the previous tick.
func (a *App) renderLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := a.cfg.Render.FPS
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			a.tick(dt)
		}
	}
}

// tick advances the controller once and publishes the frame.
func (a *App) tick(dt time.Duration) controller.Frame {
	if dt > maxStep {
		dt = maxStep
	}
	prev := a.LatestFrame()
	f := a.ctrl.Tick(dt)

	if f.State != prev.State {
		a.log.Debug("frame state", zap.Uint64("seq", f.Seq), zap.Stringer("state", f.State))
	}

	a.mu.Lock()
	a.latest = f
	for _, ch := range a.subs {
		offer(ch, f)
	}
	a.mu.Unlock()
	return f
}

// offer delivers f, replacing an unread frame so slow readers always get
// the newest one.
func offer(ch chan controller.Frame, f controller.Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

// LatestFrame returns the most recent frame.
func (a *App) LatestFrame() controller.Frame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// Subscribe returns a channel of frames and a function that ends the
// subscription. The channel holds at most one frame; readers that fall
// behind skip to the newest.
func (a *App) Subscribe() (<-chan controller.Frame, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan controller.Frame, 1)
	a.subs[id] = ch

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.subs[id]; ok {
			close(c)
			delete(a.subs, id)
		}
	}
}
