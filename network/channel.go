package network

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/consensus"
)

// Transmission is one node's broadcast for the round. Jam marks an
// extra collision-inducing burst sent alongside the payload; it adds to
// the offered load without carrying data.
type Transmission struct {
	From    string
	Message consensus.Message
	Jam     bool
}

// DeliveryEvent is one successful reception. A Duplicate event carries
// the same payload delivered twice to the same receiver.
type DeliveryEvent struct {
	From      string
	To        string
	Message   consensus.Message
	Duplicate bool
}

// ChannelConfig tunes the simulated channel around the radio model.
type ChannelConfig struct {
	LoRa     LoRaConfig
	DupeProb float64 `yaml:"dupe_prob"`

	// Wall-clock length of one round. When positive, duty-cycle limits
	// can block transmissions for multiple rounds; zero disables the
	// duty-cycle gate (one broadcast per round is always allowed).
	RoundInterval time.Duration `yaml:"round_interval"`

	Seed int64 `yaml:"seed"`
}

// NodeStats counts per-node channel activity.
type NodeStats struct {
	Sent     int
	Received int
	Blocked  int
	Lost     int
}

// Channel is the broadcast medium. All randomness comes from a single
// seeded stream, and Deliver consumes it in a fixed order (senders,
// then receivers, both sorted), so a given seed and transmission set
// always produce the same delivery outcome.
type Channel struct {
	cfg        ChannelConfig
	ids        []string
	rng        *rand.Rand
	linkFilter func(from, to string) bool

	nextAllowed map[string]int
	nodes       map[string]*NodeStats

	lastSuccessProb float64
	totalSent       int
	totalDelivered  int
}

func NewChannel(ids []string, cfg ChannelConfig) (*Channel, error) {
	if err := cfg.LoRa.Validate(); err != nil {
		return nil, fmt.Errorf("lora config: %w", err)
	}
	if cfg.DupeProb < 0 || cfg.DupeProb > 1 {
		return nil, fmt.Errorf("dupe probability must be in [0, 1], got %g", cfg.DupeProb)
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	nodes := make(map[string]*NodeStats, len(sorted))
	for _, id := range sorted {
		nodes[id] = &NodeStats{}
	}
	return &Channel{
		cfg:         cfg,
		ids:         sorted,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		nextAllowed: make(map[string]int, len(sorted)),
		nodes:       nodes,
	}, nil
}

// SetLinkFilter restricts which directed links exist. A nil filter
// restores full connectivity. Used to cut the network into components.
func (c *Channel) SetLinkFilter(f func(from, to string) bool) {
	c.linkFilter = f
}

// Deliver runs one round of the channel: every transmission is offered
// to every other node and survives independently with the ALOHA success
// probability for the current load. Jamming transmissions raise the
// load for everyone. The returned events are the complete set of
// receptions for the round.
func (c *Channel) Deliver(round int, transmissions []Transmission) ([]DeliveryEvent, error) {
	txs := append([]Transmission(nil), transmissions...)
	sort.Slice(txs, func(i, j int) bool { return txs[i].From < txs[j].From })

	jamming := 0
	for _, tx := range txs {
		if tx.Jam {
			jamming++
		}
	}
	p := c.cfg.LoRa.SuccessProbability(len(c.ids), jamming)
	c.lastSuccessProb = p

	var events []DeliveryEvent
	for _, tx := range txs {
		stats, ok := c.nodes[tx.From]
		if !ok {
			return nil, fmt.Errorf("transmission from unknown node %q", tx.From)
		}
		if c.nextAllowed[tx.From] > round {
			stats.Blocked++
			continue
		}

		encoded, err := encodePayload(tx.Message)
		if err != nil {
			return nil, fmt.Errorf("encode payload from %q: %w", tx.From, err)
		}
		c.gateDutyCycle(tx.From, round, proto.Size(encoded))

		stats.Sent++
		c.totalSent++

		for _, to := range c.ids {
			if to == tx.From {
				continue
			}
			if c.linkFilter != nil && !c.linkFilter(tx.From, to) {
				continue
			}
			if c.rng.Float64() >= p {
				stats.Lost++
				continue
			}
			var msg consensus.Message
			if err := decodePayload(encoded, &msg); err != nil {
				return nil, fmt.Errorf("decode payload from %q: %w", tx.From, err)
			}
			events = append(events, DeliveryEvent{From: tx.From, To: to, Message: msg})
			c.nodes[to].Received++
			c.totalDelivered++

			if c.cfg.DupeProb > 0 && c.rng.Float64() < c.cfg.DupeProb {
				events = append(events, DeliveryEvent{From: tx.From, To: to, Message: msg, Duplicate: true})
				c.nodes[to].Received++
			}
		}
	}
	return events, nil
}

// gateDutyCycle books the post-transmission silence as a number of
// blocked rounds, derived from the actual encoded payload size.
func (c *Channel) gateDutyCycle(from string, round int, payloadBytes int) {
	if c.cfg.RoundInterval <= 0 {
		return
	}
	wait := c.cfg.LoRa.DutyCycleWait(c.cfg.LoRa.Airtime(payloadBytes))
	blocked := int(math.Ceil(float64(wait) / float64(c.cfg.RoundInterval)))
	if blocked > 0 {
		c.nextAllowed[from] = round + 1 + blocked
	}
}

// LastSuccessProbability reports the p_s used by the most recent
// Deliver call.
func (c *Channel) LastSuccessProbability() float64 { return c.lastSuccessProb }

// DeliveryRatio is delivered receptions over offered receptions across
// the whole run.
func (c *Channel) DeliveryRatio() float64 {
	offered := c.totalSent * (len(c.ids) - 1)
	if offered == 0 {
		return 0
	}
	return float64(c.totalDelivered) / float64(offered)
}

// Stats returns a copy of one node's counters.
func (c *Channel) Stats(id string) NodeStats {
	if s, ok := c.nodes[id]; ok {
		return *s
	}
	return NodeStats{}
}
