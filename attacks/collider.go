package attacks

import (
	"math/rand"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
)

// Collider attacks the channel, not the values: its intervals are
// honest-looking (truth plus small noise), but with probability jamProb
// per round it transmits extra traffic that raises the collision load
// for everyone in range.
type Collider struct {
	jamProb float64
	rng     *rand.Rand
}

func NewCollider(nodeID int, seed int64, p Params) *Collider {
	return &Collider{jamProb: p.ColliderJamProb, rng: attackRNG(seed, nodeID)}
}

func (c *Collider) Name() string { return NameCollider }

func (c *Collider) Craft(round int, view View) interval.Interval {
	halfWidth := 1.0
	if view.HasHonest && view.HonestHalfWidth > 0 {
		halfWidth = view.HonestHalfWidth
	}
	return interval.Interval{
		Center:    view.Truth + c.rng.NormFloat64()*0.5,
		HalfWidth: halfWidth,
	}
}

// ShouldJam reports whether this round's transmission carries the extra
// jamming burst. One draw per call.
func (c *Collider) ShouldJam() bool {
	return c.rng.Float64() < c.jamProb
}
