package detect

import "math"

// CUSUM is a two-sided cumulative-sum detector:
//
//	S+_t = max(0, S+_{t-1} + (x_t - target) - drift)
//	S-_t = max(0, S-_{t-1} - (x_t - target) - drift)
//
// and a change triggers when either statistic exceeds Threshold. The
// target is the mean of the first Warmup observations after a reset, so
// a single noisy sample cannot skew the baseline; on trigger the
// detector re-baselines starting from the triggering observation so it
// can catch the next change.
//
// Drift must clear the observed signal's dispersion or the statistics
// random-walk across Threshold on a stationary input. The defaults
// assume a noise standard deviation around 0.5 (drift 2.5 sigma,
// threshold 6 sigma); callers with a known sigma should scale both.
type CUSUM struct {
	// Drift is the per-round drift allowance subtracted from the
	// deviation, absorbing estimator wander below a real change.
	Drift     float64
	Threshold float64
	// Warmup is the number of observations averaged into the baseline
	// target after a reset.
	Warmup int

	target    float64
	warmSum   float64
	warmCount int
	hasTarget bool
	sPos      float64
	sNeg      float64
}

const (
	defaultCUSUMDrift     = 1.25
	defaultCUSUMThreshold = 3.0
	defaultCUSUMWarmup    = 5
)

func NewCUSUM(drift, threshold float64) *CUSUM {
	return &CUSUM{Drift: drift, Threshold: threshold, Warmup: defaultCUSUMWarmup}
}

func (c *CUSUM) Name() string { return NameCUSUM }

func (c *CUSUM) Observe(x float64) bool {
	if !c.hasTarget {
		c.warmSum += x
		c.warmCount++
		if c.warmCount >= c.warmupLen() {
			c.target = c.warmSum / float64(c.warmCount)
			c.hasTarget = true
		}
		return false
	}
	dev := x - c.target
	c.sPos = math.Max(0, c.sPos+dev-c.Drift)
	c.sNeg = math.Max(0, c.sNeg-dev-c.Drift)
	if c.sPos > c.Threshold || c.sNeg > c.Threshold {
		c.Reset()
		// The triggering observation is the first sample of the new
		// regime; seed the next baseline with it.
		c.warmSum = x
		c.warmCount = 1
		return true
	}
	return false
}

func (c *CUSUM) warmupLen() int {
	if c.Warmup < 1 {
		return 1
	}
	return c.Warmup
}

func (c *CUSUM) Reset() {
	c.hasTarget = false
	c.warmSum = 0
	c.warmCount = 0
	c.sPos = 0
	c.sNeg = 0
}

// Stat returns the current positive and negative statistics.
func (c *CUSUM) Stat() (pos, neg float64) { return c.sPos, c.sNeg }
