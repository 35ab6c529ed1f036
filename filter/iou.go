// Package filter implements the two acceptance stages a node applies to
// incoming intervals: the pairwise IoU overlap check and the consistency
// vote that rejects coordinated, collectively displaced candidates.
package filter

import "github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"

// Candidate is one sender's interval under consideration for a round.
type Candidate struct {
	Sender   string
	Interval interval.Interval
}

// AcceptByIoU reports whether candidate overlaps local with IoU >= tau.
// Disjoint intervals (IoU 0) are rejected for any tau > 0; identical
// intervals (IoU 1) pass any threshold.
func AcceptByIoU(local, candidate interval.Interval, tau float64) bool {
	return interval.IoU(local, candidate) >= tau
}

// ByIoU returns the candidates whose intervals pass the IoU check against
// local. Malformed intervals are dropped here as if Byzantine; they never
// reach aggregation.
func ByIoU(local interval.Interval, candidates []Candidate, tau float64) []Candidate {
	var kept []Candidate
	for _, c := range candidates {
		if !c.Interval.Valid() {
			continue
		}
		if AcceptByIoU(local, c.Interval, tau) {
			kept = append(kept, c)
		}
	}
	return kept
}
