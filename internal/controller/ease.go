package controller

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/aureum/internal/formation"
)

// easeAlpha is the fraction of the remaining distance covered in dt.
// It lies in [0, 1) so easing never overshoots, and composes across
// frames so the speed does not depend on the frame rate.
func easeAlpha(rate float64, dt time.Duration) float64 {
	if dt <= 0 || rate <= 0 {
		return 0
	}
	return 1 - math.Exp(-rate*dt.Seconds())
}

func easeVec(cur, target r3.Vec, alpha, eps float64) r3.Vec {
	d := r3.Sub(target, cur)
	if r3.Norm(d) <= eps {
		return target
	}
	return r3.Add(cur, r3.Scale(alpha, d))
}

// easeAngles moves each Euler angle along the shorter arc.
func easeAngles(cur, target r3.Vec, alpha, eps float64) r3.Vec {
	d := r3.Vec{
		X: math.Remainder(target.X-cur.X, 2*math.Pi),
		Y: math.Remainder(target.Y-cur.Y, 2*math.Pi),
		Z: math.Remainder(target.Z-cur.Z, 2*math.Pi),
	}
	if r3.Norm(d) <= eps {
		return target
	}
	return r3.Add(cur, r3.Scale(alpha, d))
}

func easeScalar(cur, target, alpha, eps float64) float64 {
	d := target - cur
	if math.Abs(d) <= eps {
		return target
	}
	return cur + alpha*d
}

func easePose(cur, target formation.Pose, alpha, eps float64) formation.Pose {
	return formation.Pose{
		Position: easeVec(cur.Position, target.Position, alpha, eps),
		Rotation: easeAngles(cur.Rotation, target.Rotation, alpha, eps),
		Scale:    easeScalar(cur.Scale, target.Scale, alpha, eps),
	}
}

// Orbit is the scene camera offset steered by the hand, in radians. The
// viewer draws the scene turned by Yaw about +Y, then by Pitch about +X.
type Orbit struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Apply returns p as drawn under the orbit.
func (o Orbit) Apply(p r3.Vec) r3.Vec {
	p = r3.Rotate(p, o.Yaw, r3.Vec{Y: 1})
	return r3.Rotate(p, o.Pitch, r3.Vec{X: 1})
}

func easeOrbit(cur, target Orbit, alpha, eps float64) Orbit {
	return Orbit{
		Yaw:   easeScalar(cur.Yaw, target.Yaw, alpha, eps),
		Pitch: easeScalar(cur.Pitch, target.Pitch, alpha, eps),
	}
}
