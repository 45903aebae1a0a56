package app

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/aureum/internal/config"
	"github.com/ayusman/aureum/internal/controller"
	"github.com/ayusman/aureum/internal/detector"
	"github.com/ayusman/aureum/internal/formation"
	"github.com/ayusman/aureum/internal/tracking"
)

func formationConfig(cfg *config.Config) formation.Config {
	l := cfg.Layout
	return formation.Config{
		TreeHeight:    l.TreeHeight,
		TreeRadius:    l.TreeRadius,
		TreeBaseY:     l.TreeBaseY,
		TreeTilt:      l.TreeTilt,
		ClosedScale:   l.ClosedScale,
		CloudRadius:   l.CloudRadius,
		ExplodedScale: l.ExplodedScale,
		ZoomPosition:  r3.Vec{X: l.ZoomPosition[0], Y: l.ZoomPosition[1], Z: l.ZoomPosition[2]},
		ZoomScale:     l.ZoomScale,
		Seed:          l.Seed,
	}
}

// controllerConfig derives the grace period from the tracker rate: a
// sample stays valid for two active frames, so one dropped frame never
// reads as "hand gone".
func controllerConfig(cfg *config.Config) controller.Config {
	c := controller.DefaultConfig()
	c.Hold = cfg.Gesture.Hold
	if cfg.Camera.ActiveFPS > 0 {
		c.Grace = 2 * time.Second / time.Duration(cfg.Camera.ActiveFPS)
	}
	c.EaseRate = cfg.Render.EaseRate
	c.Epsilon = cfg.Render.Epsilon
	c.SpawnScale = cfg.Render.SpawnScale
	c.MaxYaw = cfg.Render.MaxYaw
	c.MaxPitch = cfg.Render.MaxPitch
	c.ReachX = cfg.Gesture.WorldWidth / 2
	c.ReachY = cfg.Gesture.WorldHeight / 2
	if cfg.Render.Backlog > 0 {
		c.Backlog = cfg.Render.Backlog
	}
	return c
}

func deriveConfig(cfg *config.Config) tracking.DeriveConfig {
	g := cfg.Gesture
	return tracking.DeriveConfig{
		OpenRatio:   g.OpenRatio,
		CurlRatio:   g.CurlRatio,
		PinchRatio:  g.PinchRatio,
		WorldWidth:  g.WorldWidth,
		WorldHeight: g.WorldHeight,
		WorldDepth:  g.WorldDepth,
	}
}

func trackingConfig(cfg *config.Config) tracking.Config {
	c := cfg.Camera
	return tracking.Config{
		IdleFPS:         c.IdleFPS,
		ActiveFPS:       c.ActiveFPS,
		IdleTimeout:     c.IdleTimeout,
		MotionThreshold: c.MotionThreshold,
		MotionGate:      c.MotionGate,
	}
}

func detectorConfig(cfg *config.Config) detector.Config {
	d := detector.DefaultConfig()
	d.MinConfidence = cfg.Detector.MinConfidence
	d.MinTrackingConf = cfg.Detector.MinTrackingConf
	return d
}
