package consensus

// ContractionParams are the adaptive-contraction knobs.
type ContractionParams struct {
	LambdaMin float64
	LambdaMax float64
	// SupportThreshold is theta: the accepted fraction below which the
	// node throttles to LambdaMin/2.
	SupportThreshold float64
	// WMax normalizes accepted-set dispersion; the round-0 width W0.
	WMax float64
}

// AdaptiveLambda picks the contraction factor for a round.
//
// Above the support threshold, low dispersion (MAD) among accepted
// midpoints signals honest-majority agreement and earns contraction up
// to LambdaMax. Below it, weak evidence (attack or heavy packet loss)
// throttles to LambdaMin/2 so a small adversarial quorum cannot drag the
// node quickly.
func AdaptiveLambda(support, mad float64, p ContractionParams) float64 {
	if support < p.SupportThreshold {
		return p.LambdaMin / 2
	}
	x := 0.0
	if p.WMax > 0 {
		x = 1 - mad/p.WMax
	}
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	return p.LambdaMin + (p.LambdaMax-p.LambdaMin)*x
}
