package attacks

import (
	"math/rand"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
)

// Mimic crafts intervals that pass the IoU check while injecting a
// constant bias: centered at truth+bias, slightly wider than the honest
// interval so the overlap clears the target threshold. Individually each
// interval looks plausible; the displacement only shows up collectively.
type Mimic struct {
	bias        float64
	iouTarget   float64
	widthFactor float64
	rng         *rand.Rand
}

func NewMimic(nodeID int, seed int64, p Params) *Mimic {
	return &Mimic{
		bias:        p.MimicBias,
		iouTarget:   p.MimicIoUTarget,
		widthFactor: p.MimicWidthMultiplier,
		rng:         attackRNG(seed, nodeID),
	}
}

func (m *Mimic) Name() string { return NameMimic }

func (m *Mimic) Craft(round int, view View) interval.Interval {
	center := view.Truth + m.bias + m.rng.NormFloat64()*0.1

	halfWidth := 1.0
	if view.HasHonest && view.HonestHalfWidth > 0 {
		halfWidth = view.HonestHalfWidth * m.widthFactor
	}
	crafted := interval.Interval{Center: center, HalfWidth: halfWidth}

	// If the overlap with the overheard honest interval misses the
	// target, widen while that still improves the overlap. Past the point
	// where the crafted interval covers the honest one, more width only
	// dilutes the union, so widening stops.
	if view.HasHonest {
		honest := interval.Interval{Center: view.HonestCenter, HalfWidth: view.HonestHalfWidth}
		for i := 0; i < 8 && interval.IoU(honest, crafted) < m.iouTarget; i++ {
			wider := crafted
			wider.HalfWidth *= 1.5
			if interval.IoU(honest, wider) <= interval.IoU(honest, crafted) {
				break
			}
			crafted = wider
		}
	}
	return crafted
}
