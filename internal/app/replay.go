package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ayusman/aureum/internal/recording"
)

// Replay plays a saved recording into the controller in real time. The
// live tracker is paused for the duration and resumed afterwards if
// tracking is wanted. A replay already in progress is cancelled first.
func (a *App) Replay(id string) error {
	if !a.Running() {
		return ErrNotRunning
	}
	sess, err := a.recorder.Load(id)
	if err != nil {
		return err
	}
	a.StopReplay()

	a.replaying.Store(true)
	a.tracker.Stop()

	in := a.ctrl.Inbox()
	in.SetTracking(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.mu.Lock()
	a.replayCancel = cancel
	a.replayDone = done
	a.mu.Unlock()

	a.log.Info("replay started", zap.String("id", id), zap.Int("samples", len(sess.Samples)))

	go func() {
		defer close(done)
		err := recording.Play(ctx, sess, in.PushSample)
		a.replaying.Store(false)

		if a.wantTracking.Load() && a.Running() {
			if err := a.tracker.Start(); err != nil {
				a.log.Warn("resume tracking after replay", zap.Error(err))
				in.SetTracking(false)
			}
		} else {
			in.SetTracking(false)
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("replay failed", zap.String("id", id), zap.Error(err))
			return
		}
		a.log.Info("replay finished", zap.String("id", id), zap.Bool("cancelled", err != nil))
	}()
	return nil
}

// StopReplay cancels a running replay and waits for it to unwind.
func (a *App) StopReplay() {
	a.mu.Lock()
	cancel, done := a.replayCancel, a.replayDone
	a.replayCancel, a.replayDone = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Replaying reports whether a recording is being played back.
func (a *App) Replaying() bool {
	return a.replaying.Load()
}
