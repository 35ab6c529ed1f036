// Package aggregate implements the robust center estimators used to fuse
// accepted interval midpoints: trimmed mean, geometric median (Weiszfeld),
// median of means, and the Catoni M-estimator.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNoValues signals "no update": an aggregator never invents a default
// center from an empty accepted set.
var ErrNoValues = errors.New("aggregate: no values")

// Result is a robust center estimate.
type Result struct {
	Center float64
	// Degraded is set when an iterative estimator hit its iteration cap
	// before reaching tolerance. The center is still the best available
	// iterate; callers report the event in metrics instead of failing
	// the round.
	Degraded bool
}

// Aggregator fuses a set of real values into a single center estimate.
type Aggregator interface {
	Name() string
	Aggregate(values []float64) (Result, error)
}

// Estimator names accepted by ByName, matching the configuration surface.
const (
	NameTrimmedMean     = "trimmed_mean"
	NameGeometricMedian = "geometric_median"
	NameMedianOfMeans   = "mom"
	NameCatoni          = "catoni"
)

// ByName returns the aggregator selected by configuration.
func ByName(name string) (Aggregator, error) {
	switch name {
	case NameTrimmedMean:
		return NewTrimmedMean(0.10, 0.05, 0.20), nil
	case NameGeometricMedian:
		return NewGeometricMedian(), nil
	case NameMedianOfMeans:
		return NewMedianOfMeans(0), nil
	case NameCatoni:
		return NewCatoni(), nil
	default:
		return nil, fmt.Errorf("unknown estimator %q", name)
	}
}

// Median returns the median of values. Panics on empty input; callers
// guard with ErrNoValues first.
func Median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// MAD is the median absolute deviation, a robust dispersion measure.
// Returns 0 for fewer than 2 values.
func MAD(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	med := Median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	return Median(dev)
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
