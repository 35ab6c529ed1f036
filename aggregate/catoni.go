package aggregate

import "math"

// Catoni is the Catoni M-estimator: it solves sum(psi((v_i - theta)/s)) = 0
// for the bounded, odd influence function
//
//	psi(x) = sign(x) * log(1 + |x| + x^2/2)
//
// via fixed-point iteration. The bounded influence soft-clips heavy-tailed
// values without hard trimming.
type Catoni struct {
	MaxIter   int
	Tolerance float64
	// ScaleFloor keeps the scale positive when the data has zero
	// dispersion (all values equal).
	ScaleFloor float64
}

func NewCatoni() *Catoni {
	return &Catoni{MaxIter: 50, Tolerance: 1e-6, ScaleFloor: 1e-6}
}

func (c *Catoni) Name() string { return NameCatoni }

func psi(x float64) float64 {
	v := math.Log(1 + math.Abs(x) + x*x/2)
	if x < 0 {
		return -v
	}
	return v
}

func (c *Catoni) Aggregate(values []float64) (Result, error) {
	if len(values) == 0 {
		return Result{}, ErrNoValues
	}
	if len(values) == 1 {
		return Result{Center: values[0]}, nil
	}

	// Scale from the data's robust dispersion (1.4826 makes MAD
	// consistent for Gaussian noise).
	s := 1.4826 * MAD(values)
	if s < c.ScaleFloor {
		s = c.ScaleFloor
	}

	theta := Median(values)
	for iter := 0; iter < c.MaxIter; iter++ {
		var acc float64
		for _, v := range values {
			acc += psi((v - theta) / s)
		}
		step := s * acc / float64(len(values))
		theta += step
		if math.Abs(step) < c.Tolerance {
			return Result{Center: theta}, nil
		}
	}
	return Result{Center: theta, Degraded: true}, nil
}
