package consensus

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/aggregate"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/detect"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/filter"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
)

// Phase is the node's tracking state. CONVERGING precedes the first
// epsilon-entry; STABLE and RE-STABILIZING are both tracking sub-states.
type Phase string

const (
	PhaseConverging    Phase = "CONVERGING"
	PhaseStable        Phase = "STABLE"
	PhaseRestabilizing Phase = "RE-STABILIZING"
)

// Params configures a node's round update.
type Params struct {
	// Tau is the IoU acceptance threshold.
	Tau float64
	// NumNodes is n, the denominator of the support fraction.
	NumNodes    int
	Contraction ContractionParams
	// BandwidthFactor scales the local half-width into the consistency
	// voter's bandwidth; BandwidthFloor bounds it from below so a fully
	// contracted node still votes.
	BandwidthFactor float64
	BandwidthFloor  float64
	// DisableVote skips the consistency vote, leaving only the pairwise
	// IoU check. Exposed for ablation runs measuring the bias a
	// coordinated mimic cluster injects without the vote; never used in
	// a defended deployment.
	DisableVote bool
	// ResetLambdaOnChange boosts lambda to LambdaMax while the node is
	// re-stabilizing after a detected change (policy option).
	ResetLambdaOnChange bool
	// WidenOnChange resets the half-width to W0 on a detected change so
	// the IoU filter can accept intervals around the new value. This is
	// the explicit re-stabilization reset permitted by the width
	// invariant.
	WidenOnChange bool
	// SupportHistoryLen caps the retained support history.
	SupportHistoryLen int
	// SeenCacheSize bounds the duplicate-suppression cache.
	SeenCacheSize int
}

func (p *Params) defaults() {
	if p.BandwidthFactor == 0 {
		p.BandwidthFactor = 1.0
	}
	if p.BandwidthFloor == 0 {
		p.BandwidthFloor = 0.25
	}
	if p.SupportHistoryLen == 0 {
		p.SupportHistoryLen = 64
	}
	if p.SeenCacheSize == 0 {
		p.SeenCacheSize = 512
	}
}

// StepReport summarizes one round update for metrics and tracing.
type StepReport struct {
	Round          int
	Delivered      int
	Accepted       int
	Support        float64
	Lambda         float64
	Updated        bool
	WeakSupport    bool
	Degraded       bool
	ChangeDetected bool
	Interval       interval.Interval
}

// NodeState is the externally visible snapshot of a node.
type NodeState struct {
	ID                string
	Interval          interval.Interval
	Phase             Phase
	LastAcceptedCount int
	SupportHistory    []float64
	ComponentID       string
}

// Node owns its interval exclusively; other nodes see it only through
// emitted Messages. One Step per round.
type Node struct {
	id     string
	iv     interval.Interval
	w0     float64
	phase  Phase
	params Params

	agg aggregate.Aggregator
	det detect.Detector

	lastAccepted   int
	supportHistory []float64
	component      string
	seen           *lru.Cache[string, struct{}]
}

// NewNode seeds a node with its round-0 interval.
func NewNode(id string, seed interval.Interval, params Params, agg aggregate.Aggregator, det detect.Detector) (*Node, error) {
	if !seed.Valid() {
		return nil, fmt.Errorf("node %s: invalid seed interval", id)
	}
	if params.NumNodes < 1 {
		return nil, fmt.Errorf("node %s: NumNodes must be >= 1", id)
	}
	params.defaults()
	if det == nil {
		det = detect.None{}
	}
	seen, err := lru.New[string, struct{}](params.SeenCacheSize)
	if err != nil {
		return nil, err
	}
	return &Node{
		id:     id,
		iv:     seed,
		w0:     seed.HalfWidth,
		phase:  PhaseConverging,
		params: params,
		agg:    agg,
		det:    det,
		seen:   seen,
	}, nil
}

func (n *Node) ID() string { return n.id }

// Emit produces this node's message for the round.
func (n *Node) Emit(round int) Message {
	return NewMessage(n.id, round, n.iv)
}

// SetComponent records the component id assigned by the partition
// detector. Bookkeeping only; the round update never reads it.
func (n *Node) SetComponent(id string) { n.component = id }

// MarkStable moves the node out of CONVERGING or RE-STABILIZING. Driven
// by the external stability instrumentation, never by consensus logic.
func (n *Node) MarkStable() { n.phase = PhaseStable }

// Reseed replaces the node's interval (explicit sensor re-seeding).
func (n *Node) Reseed(iv interval.Interval) {
	if iv.Valid() {
		n.iv = iv
		n.w0 = iv.HalfWidth
	}
}

// State returns a copy of the node's externally visible state.
func (n *Node) State() NodeState {
	hist := append([]float64(nil), n.supportHistory...)
	return NodeState{
		ID:                n.id,
		Interval:          n.iv,
		Phase:             n.phase,
		LastAcceptedCount: n.lastAccepted,
		SupportHistory:    hist,
		ComponentID:       n.component,
	}
}

// Step runs one round: filter -> vote -> aggregate -> contract. inbox is
// the round's delivered messages; localReading, when present, is a fresh
// sensor reading that joins the aggregation input and feeds the change
// detector. With an empty accepted set the node retains its interval
// unchanged and records a weak-support event.
func (n *Node) Step(round int, inbox []Message, localReading *float64) StepReport {
	rep := StepReport{Round: round}

	candidates := make([]filter.Candidate, 0, len(inbox))
	for _, msg := range inbox {
		if msg.Sender == n.id {
			continue
		}
		key := fmt.Sprintf("%s#%d", msg.Sender, msg.Round)
		if _, dup := n.seen.Get(key); dup {
			continue
		}
		n.seen.Add(key, struct{}{})
		candidates = append(candidates, filter.Candidate{Sender: msg.Sender, Interval: msg.Interval()})
	}
	rep.Delivered = len(candidates)

	accepted := filter.ByIoU(n.iv, candidates, n.params.Tau)
	if !n.params.DisableVote {
		bw := filter.DefaultBandwidth(n.iv.HalfWidth, n.params.BandwidthFactor, n.params.BandwidthFloor)
		accepted = filter.Vote(accepted, bw)
	}

	rep.Accepted = len(accepted)
	rep.Support = float64(len(accepted)) / float64(n.params.NumNodes)
	n.lastAccepted = len(accepted)
	n.pushSupport(rep.Support)

	if len(accepted) == 0 {
		rep.WeakSupport = true
		rep.Interval = n.iv
		n.observe(&rep, localReading)
		return rep
	}

	values := make([]float64, 0, len(accepted)+1)
	for _, c := range accepted {
		values = append(values, c.Interval.Center)
	}
	mad := aggregate.MAD(values)
	if localReading != nil {
		values = append(values, *localReading)
	}

	res, err := n.aggregateRound(values, accepted, localReading)
	if err != nil {
		// Aggregators only fail on an empty value set; record the round
		// as weak support and keep the interval.
		rep.WeakSupport = true
		rep.Interval = n.iv
		n.observe(&rep, localReading)
		return rep
	}
	rep.Degraded = res.Degraded

	lambda := AdaptiveLambda(rep.Support, mad, n.params.Contraction)
	if n.phase == PhaseRestabilizing && n.params.ResetLambdaOnChange && rep.Support >= n.params.Contraction.SupportThreshold {
		lambda = n.params.Contraction.LambdaMax
	}
	rep.Lambda = lambda

	next, err := interval.Contract(n.iv, lambda, res.Center)
	if err == nil {
		n.iv = next
		rep.Updated = true
	}
	rep.Interval = n.iv

	n.observe(&rep, localReading)
	return rep
}

// aggregateRound applies the configured estimator. The trimmed mean
// additionally weights each accepted center by its inverse half-width,
// so tighter (more contracted, hence more certain) intervals count
// more; the local reading carries the node's own current half-width.
func (n *Node) aggregateRound(values []float64, accepted []filter.Candidate, localReading *float64) (aggregate.Result, error) {
	tm, ok := n.agg.(*aggregate.TrimmedMean)
	if !ok {
		return n.agg.Aggregate(values)
	}
	weights := make([]float64, 0, len(values))
	for _, c := range accepted {
		weights = append(weights, inverseWidth(c.Interval.HalfWidth))
	}
	if localReading != nil {
		weights = append(weights, inverseWidth(n.iv.HalfWidth))
	}
	return tm.AggregateWeighted(values, weights)
}

// inverseWidth floors the half-width so a fully contracted interval
// cannot dominate the weighted aggregate.
func inverseWidth(hw float64) float64 {
	const minWidth = 1e-3
	if hw < minWidth {
		hw = minWidth
	}
	return 1 / hw
}

// observe feeds the change detector with the locally observable signal:
// the fresh sensor reading when one was taken, otherwise the post-round
// estimate.
func (n *Node) observe(rep *StepReport, localReading *float64) {
	x := n.iv.Center
	if localReading != nil {
		x = *localReading
	}
	if n.det.Observe(x) {
		rep.ChangeDetected = true
		n.phase = PhaseRestabilizing
		if n.params.WidenOnChange {
			n.iv.HalfWidth = n.w0
			rep.Interval = n.iv
		}
	}
}

func (n *Node) pushSupport(s float64) {
	n.supportHistory = append(n.supportHistory, s)
	if len(n.supportHistory) > n.params.SupportHistoryLen {
		n.supportHistory = n.supportHistory[len(n.supportHistory)-n.params.SupportHistoryLen:]
	}
}
