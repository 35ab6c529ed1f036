package attacks

import (
	"math/rand"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
)

// Drift starts indistinguishable from an honest sensor and walks its
// bias away from truth a little more each round, capped so the interval
// stays inside the plausible envelope. The slow ramp is designed to stay
// under per-round change-detection thresholds.
type Drift struct {
	rate    float64
	max     float64
	current float64
	rng     *rand.Rand
}

func NewDrift(nodeID int, seed int64, p Params) *Drift {
	return &Drift{rate: p.DriftRate, max: p.DriftMax, rng: attackRNG(seed, nodeID)}
}

func (d *Drift) Name() string { return NameDrift }

func (d *Drift) Craft(round int, view View) interval.Interval {
	d.current += d.rate
	if d.current > d.max {
		d.current = d.max
	}
	halfWidth := 1.0
	if view.HasHonest && view.HonestHalfWidth > 0 {
		halfWidth = view.HonestHalfWidth
	}
	return interval.Interval{
		Center:    view.Truth + d.current + d.rng.NormFloat64()*0.1,
		HalfWidth: halfWidth,
	}
}
