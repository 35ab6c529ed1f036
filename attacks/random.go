package attacks

import (
	"math/rand"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
)

// Random emits uniform noise around truth. The weakest strategy, kept as
// a baseline: every robust aggregator should shrug it off.
type Random struct {
	span float64
	rng  *rand.Rand
}

func NewRandom(nodeID int, seed int64, p Params) *Random {
	return &Random{span: p.RandomRange, rng: attackRNG(seed, nodeID)}
}

func (r *Random) Name() string { return NameRandom }

func (r *Random) Craft(round int, view View) interval.Interval {
	center := view.Truth + (r.rng.Float64()*2-1)*r.span
	halfWidth := 0.5 + r.rng.Float64()*2
	return interval.Interval{Center: center, HalfWidth: halfWidth}
}
