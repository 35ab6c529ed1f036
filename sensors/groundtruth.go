// Package sensors provides the ground-truth models and the honest sensor
// used to seed and re-seed node estimates. Ground truth is visible to the
// simulation and the attackers, never to honest consensus logic.
package sensors

import (
	"fmt"
	"sort"
)

// Change is a step of the ground truth at a point in simulated time.
type Change struct {
	Time  float64 `yaml:"time"`
	Value float64 `yaml:"value"`
}

// GroundTruth is the evolving true scalar x*(t).
type GroundTruth interface {
	Value(time float64) float64
	Changes() []Change
}

// Constant is a ground truth that never changes.
type Constant float64

func (c Constant) Value(float64) float64 { return float64(c) }
func (c Constant) Changes() []Change     { return []Change{{Time: 0, Value: float64(c)}} }

// Piecewise is a piecewise-constant ground truth, e.g. a reefer door
// opening at t=1200s and closing at t=1800s.
type Piecewise struct {
	changes []Change
}

// NewPiecewise builds a piecewise-constant truth from step changes.
func NewPiecewise(changes []Change) (*Piecewise, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("piecewise ground truth needs at least one change")
	}
	sorted := append([]Change(nil), changes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	for _, c := range sorted {
		if c.Time < 0 {
			return nil, fmt.Errorf("change time must be non-negative, got %v", c.Time)
		}
	}
	return &Piecewise{changes: sorted}, nil
}

// Value returns the value of the most recent change at or before t.
func (p *Piecewise) Value(t float64) float64 {
	v := p.changes[0].Value
	for _, c := range p.changes {
		if c.Time <= t {
			v = c.Value
		} else {
			break
		}
	}
	return v
}

func (p *Piecewise) Changes() []Change {
	return append([]Change(nil), p.changes...)
}

// NextChange returns the time of the first change strictly after t, or
// false if none remain.
func (p *Piecewise) NextChange(t float64) (float64, bool) {
	for _, c := range p.changes {
		if c.Time > t {
			return c.Time, true
		}
	}
	return 0, false
}
