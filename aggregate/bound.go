package aggregate

import (
	"fmt"
	"math"
)

// BiasBound decomposes the theoretical consensus bias bound
//
//	B = W_h(1-tau) + sigma*sqrt(2*log(2n/delta))
//
// which holds with probability >= 1-delta under a Byzantine minority.
// The adversarial term is the largest shift an interval passing the IoU
// threshold can inject; the statistical term is sub-Gaussian sensor-noise
// concentration.
type BiasBound struct {
	Adversarial float64
	Statistical float64
	Total       float64
}

// TheoreticalBiasBound computes the bound for honest half-width wh, IoU
// threshold tau, sensor noise sigma, n nodes, and confidence 1-delta.
func TheoreticalBiasBound(wh, tau, sigma float64, n int, confidence float64) (BiasBound, error) {
	if wh < 0 || tau < 0 || tau > 1 || sigma < 0 || n < 1 {
		return BiasBound{}, fmt.Errorf("invalid bound parameters: wh=%v tau=%v sigma=%v n=%d", wh, tau, sigma, n)
	}
	if confidence <= 0 || confidence >= 1 {
		return BiasBound{}, fmt.Errorf("confidence must be in (0,1), got %v", confidence)
	}
	delta := 1 - confidence
	adv := wh * (1 - tau)
	stat := sigma * math.Sqrt(2*math.Log(2*float64(n)/delta))
	return BiasBound{Adversarial: adv, Statistical: stat, Total: adv + stat}, nil
}
