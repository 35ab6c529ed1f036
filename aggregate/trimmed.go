package aggregate

import "sort"

// TrimmedMean discards the lowest and highest Fraction of values before
// averaging. Fraction is clamped to [Min, Max] so a misconfigured trim can
// neither disable the defense nor discard everything.
type TrimmedMean struct {
	Fraction float64
	Min      float64
	Max      float64
}

func NewTrimmedMean(fraction, min, max float64) *TrimmedMean {
	return &TrimmedMean{Fraction: fraction, Min: min, Max: max}
}

func (t *TrimmedMean) Name() string { return NameTrimmedMean }

func (t *TrimmedMean) fraction() float64 {
	f := t.Fraction
	if f < t.Min {
		f = t.Min
	}
	if f > t.Max {
		f = t.Max
	}
	if f < 0 {
		f = 0
	}
	if f > 0.5 {
		f = 0.5
	}
	return f
}

func (t *TrimmedMean) Aggregate(values []float64) (Result, error) {
	if len(values) == 0 {
		return Result{}, ErrNoValues
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)

	k := int(float64(len(s)) * t.fraction())
	if 2*k >= len(s) {
		// Trimming would discard everything; fall back to the median.
		return Result{Center: Median(s)}, nil
	}
	return Result{Center: mean(s[k : len(s)-k])}, nil
}

// AggregateWeighted averages the trimmed values weighted by the given
// weights (callers pass inverse half-widths so tighter intervals count
// more). Weights must parallel values; non-positive weights are skipped.
func (t *TrimmedMean) AggregateWeighted(values, weights []float64) (Result, error) {
	if len(values) == 0 {
		return Result{}, ErrNoValues
	}
	if len(weights) != len(values) {
		return t.Aggregate(values)
	}

	type pair struct{ v, w float64 }
	pairs := make([]pair, len(values))
	for i := range values {
		pairs[i] = pair{values[i], weights[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })

	k := int(float64(len(pairs)) * t.fraction())
	if 2*k >= len(pairs) {
		return Result{Center: Median(values)}, nil
	}

	var sum, wsum float64
	for _, p := range pairs[k : len(pairs)-k] {
		if p.w <= 0 {
			continue
		}
		sum += p.v * p.w
		wsum += p.w
	}
	if wsum == 0 {
		return t.Aggregate(values)
	}
	return Result{Center: sum / wsum}, nil
}
