// Package interval provides confidence-interval arithmetic for the
// consensus core: intersection/union, the scale-invariant IoU overlap
// measure, contraction toward a target, and the ε-agreement check.
package interval

import (
	"fmt"
	"math"
)

// degenerateEps is the width below which an interval is treated as a point.
const degenerateEps = 1e-12

// Interval is a confidence interval [Center-HalfWidth, Center+HalfWidth].
// A zero HalfWidth is a valid degenerate point.
type Interval struct {
	Center    float64
	HalfWidth float64
}

// New builds an interval and validates it. Non-finite fields or a negative
// half-width are rejected.
func New(center, halfWidth float64) (Interval, error) {
	iv := Interval{Center: center, HalfWidth: halfWidth}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("invalid interval: center=%v halfWidth=%v", center, halfWidth)
	}
	return iv, nil
}

// FromBounds builds an interval from [lower, upper].
func FromBounds(lower, upper float64) (Interval, error) {
	if lower > upper {
		return Interval{}, fmt.Errorf("invalid interval: [%v, %v]", lower, upper)
	}
	return New((lower+upper)/2, (upper-lower)/2)
}

// Valid reports whether the interval has finite fields and HalfWidth >= 0.
func (iv Interval) Valid() bool {
	if math.IsNaN(iv.Center) || math.IsInf(iv.Center, 0) {
		return false
	}
	if math.IsNaN(iv.HalfWidth) || math.IsInf(iv.HalfWidth, 0) {
		return false
	}
	return iv.HalfWidth >= 0
}

func (iv Interval) Lower() float64 { return iv.Center - iv.HalfWidth }
func (iv Interval) Upper() float64 { return iv.Center + iv.HalfWidth }
func (iv Interval) Width() float64 { return 2 * iv.HalfWidth }

// Contains reports whether v lies inside the interval (bounds inclusive).
func (iv Interval) Contains(v float64) bool {
	return iv.Lower() <= v && v <= iv.Upper()
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%.3f, %.3f] mid=%.3f w=%.3f", iv.Lower(), iv.Upper(), iv.Center, iv.Width())
}

// IntersectionLength is max(0, min(uppers) - max(lowers)).
func IntersectionLength(a, b Interval) float64 {
	lo := math.Max(a.Lower(), b.Lower())
	hi := math.Min(a.Upper(), b.Upper())
	if hi < lo {
		return 0
	}
	return hi - lo
}

// UnionLength is the length of the convex hull of the two intervals.
func UnionLength(a, b Interval) float64 {
	return math.Max(a.Upper(), b.Upper()) - math.Min(a.Lower(), b.Lower())
}

// IoU is intersection-over-union of two intervals.
//
// Edge cases: if both intervals are degenerate points, IoU is 1 when they
// coincide and 0 otherwise. Disjoint intervals give 0, identical give 1.
func IoU(a, b Interval) float64 {
	union := UnionLength(a, b)
	if union < degenerateEps {
		// Both degenerate: coincident points agree fully.
		if a.Width() < degenerateEps && b.Width() < degenerateEps {
			return 1
		}
		return 0
	}
	iou := IntersectionLength(a, b) / union
	return math.Max(0, math.Min(1, iou))
}

// Contract moves the interval toward target by factor lambda in [0, 1] and
// shrinks its half-width by the same factor:
//
//	newCenter = center + λ(target - center)
//	newHalfWidth = halfWidth(1 - λ)
func Contract(iv Interval, lambda, target float64) (Interval, error) {
	if lambda < 0 || lambda > 1 {
		return Interval{}, fmt.Errorf("lambda must be in [0,1], got %v", lambda)
	}
	return New(iv.Center+lambda*(target-iv.Center), iv.HalfWidth*(1-lambda))
}

// EpsilonAgreement reports whether the spread of interval centers is at
// most epsilon. An empty slice agrees trivially.
func EpsilonAgreement(ivs []Interval, epsilon float64) bool {
	if len(ivs) == 0 {
		return true
	}
	lo, hi := ivs[0].Center, ivs[0].Center
	for _, iv := range ivs[1:] {
		lo = math.Min(lo, iv.Center)
		hi = math.Max(hi, iv.Center)
	}
	return hi-lo <= epsilon
}

// IoUMatrix computes the pairwise IoU matrix M[i][j] = IoU(ivs[i], ivs[j]).
func IoUMatrix(ivs []Interval) [][]float64 {
	m := make([][]float64, len(ivs))
	for i := range ivs {
		m[i] = make([]float64, len(ivs))
		for j := range ivs {
			m[i][j] = IoU(ivs[i], ivs[j])
		}
	}
	return m
}
