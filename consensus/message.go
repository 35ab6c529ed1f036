// Package consensus implements the per-node round update: IoU filtering,
// consistency voting, robust aggregation and dispersion-adaptive
// contraction of the node's confidence interval, plus the node's
// tracking state machine.
package consensus

import "github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"

// Message is one node's emitted interval for a round. Immutable once
// emitted; receivers consume it read-only.
type Message struct {
	Sender    string  `json:"sender"`
	Round     int     `json:"round"`
	Center    float64 `json:"center"`
	HalfWidth float64 `json:"half_width"`
}

// Interval returns the interval carried by the message.
func (m Message) Interval() interval.Interval {
	return interval.Interval{Center: m.Center, HalfWidth: m.HalfWidth}
}

// NewMessage wraps an interval for emission.
func NewMessage(sender string, round int, iv interval.Interval) Message {
	return Message{Sender: sender, Round: round, Center: iv.Center, HalfWidth: iv.HalfWidth}
}
