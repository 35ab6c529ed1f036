package detect

import "math"

// GLR is a generalized likelihood-ratio detector over a sliding window.
// For every split point it fits pre- and post-change means and computes
// the Gaussian log-likelihood ratio
//
//	g_k = n1*n2/(n1+n2) * (mean2 - mean1)^2 / (2*var)
//
// with the variance pooled over the whole window. A change triggers when
// the maximum over splits exceeds Threshold.
type GLR struct {
	Window    int
	Threshold float64
	// MinSegment is the minimum number of observations on each side of a
	// candidate split.
	MinSegment int

	history []float64
}

func NewGLR(window int, threshold float64) *GLR {
	return &GLR{Window: window, Threshold: threshold, MinSegment: 5}
}

func (g *GLR) Name() string { return NameGLR }

func (g *GLR) Observe(x float64) bool {
	g.history = append(g.history, x)
	if len(g.history) > g.Window {
		g.history = g.history[len(g.history)-g.Window:]
	}
	if len(g.history) < 2*g.MinSegment {
		return false
	}

	variance := pooledVariance(g.history)
	if variance < 1e-9 {
		variance = 1e-9
	}

	best := 0.0
	n := len(g.history)
	for k := g.MinSegment; k <= n-g.MinSegment; k++ {
		m1 := meanOf(g.history[:k])
		m2 := meanOf(g.history[k:])
		n1, n2 := float64(k), float64(n-k)
		stat := (n1 * n2 / (n1 + n2)) * (m2 - m1) * (m2 - m1) / (2 * variance)
		if stat > best {
			best = stat
		}
	}
	if best > g.Threshold {
		g.Reset()
		g.history = append(g.history, x)
		return true
	}
	return false
}

func (g *GLR) Reset() { g.history = nil }

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func pooledVariance(xs []float64) float64 {
	m := meanOf(xs)
	var acc float64
	for _, x := range xs {
		acc += (x - m) * (x - m)
	}
	return acc / math.Max(1, float64(len(xs)-1))
}
