package attacks

import (
	"math/rand"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
)

// Spike emits far outliers: intervals displaced from truth by a large
// fixed magnitude in a per-round random direction. Trivially rejected by
// the IoU filter; its job is to stress the robust aggregators when the
// filter is disabled or misconfigured.
type Spike struct {
	magnitude float64
	rng       *rand.Rand
}

func NewSpike(nodeID int, seed int64, p Params) *Spike {
	return &Spike{magnitude: p.SpikeMagnitude, rng: attackRNG(seed, nodeID)}
}

func (s *Spike) Name() string { return NameSpike }

func (s *Spike) Craft(round int, view View) interval.Interval {
	direction := 1.0
	if s.rng.Float64() < 0.5 {
		direction = -1.0
	}
	halfWidth := 1.0
	if view.HasHonest && view.HonestHalfWidth > 0 {
		halfWidth = view.HonestHalfWidth
	}
	return interval.Interval{
		Center:    view.Truth + direction*s.magnitude,
		HalfWidth: halfWidth,
	}
}
