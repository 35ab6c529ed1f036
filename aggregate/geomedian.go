package aggregate

import "math"

// GeometricMedian estimates the center via Weiszfeld iteration. In one
// dimension this converges to the median but with a breakdown point of
// ~0.5: the estimate stays bounded while fewer than half the values are
// adversarial.
type GeometricMedian struct {
	MaxIter   int
	Tolerance float64
	// distEps guards the 1/distance weight when the iterate lands on a
	// data point.
	distEps float64
}

func NewGeometricMedian() *GeometricMedian {
	return &GeometricMedian{MaxIter: 20, Tolerance: 1e-6, distEps: 1e-9}
}

func (g *GeometricMedian) Name() string { return NameGeometricMedian }

func (g *GeometricMedian) Aggregate(values []float64) (Result, error) {
	if len(values) == 0 {
		return Result{}, ErrNoValues
	}
	if len(values) == 1 {
		return Result{Center: values[0]}, nil
	}

	m := mean(values)
	for iter := 0; iter < g.MaxIter; iter++ {
		var num, den float64
		for _, v := range values {
			d := math.Abs(v-m) + g.distEps
			num += v / d
			den += 1 / d
		}
		next := num / den
		if math.Abs(next-m) < g.Tolerance {
			return Result{Center: next}, nil
		}
		m = next
	}
	// Iteration cap reached: best iterate, reported as degraded.
	return Result{Center: m, Degraded: true}, nil
}
