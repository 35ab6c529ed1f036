package filter

// Vote runs density-based mode detection over the midpoints of the
// IoU-accepted candidates and keeps only the densest cluster. Candidates
// that are pairwise-plausible but collectively displaced from the honest
// majority's mode are discarded even though no pairwise check flags them.
//
// Density of a candidate is the count of other midpoints within bandwidth
// h of its own. The retained cluster is the one rooted at the densest
// candidate; members are the candidates within h of that root. With fewer
// than 2 candidates there is nothing to cluster and all pass through.
func Vote(candidates []Candidate, bandwidth float64) []Candidate {
	if len(candidates) < 2 {
		return candidates
	}
	if bandwidth <= 0 {
		return candidates
	}

	density := make([]int, len(candidates))
	for i, ci := range candidates {
		for j, cj := range candidates {
			if i == j {
				continue
			}
			if abs(ci.Interval.Center-cj.Interval.Center) <= bandwidth {
				density[i]++
			}
		}
	}

	best := 0
	for i := range density {
		if density[i] > density[best] {
			best = i
		}
	}

	mode := candidates[best].Interval.Center
	var kept []Candidate
	for _, c := range candidates {
		if abs(c.Interval.Center-mode) <= bandwidth {
			kept = append(kept, c)
		}
	}
	return kept
}

// DefaultBandwidth derives the voter bandwidth from the local interval's
// half-width. halfWidth 0 falls back to the floor so a fully contracted
// node still accepts agreeing neighbors.
func DefaultBandwidth(localHalfWidth, factor, floor float64) float64 {
	h := localHalfWidth * factor
	if h < floor {
		return floor
	}
	return h
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
