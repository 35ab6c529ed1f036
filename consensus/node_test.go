package consensus

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/aggregate"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/detect"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/stability"
)

func testParams(n int) Params {
	return Params{
		Tau:         0.20,
		NumNodes:    n,
		Contraction: ContractionParams{LambdaMin: 0.08, LambdaMax: 0.18, SupportThreshold: 0.5, WMax: 5.0},
	}
}

func newTestNode(t *testing.T, n int) *Node {
	t.Helper()
	seed := interval.Interval{Center: 25.0, HalfWidth: 2.5}
	node, err := NewNode("self", seed, testParams(n), aggregate.NewGeometricMedian(), detect.None{})
	require.NoError(t, err)
	return node
}

func honestInbox(round, count int, center, halfWidth float64) []Message {
	msgs := make([]Message, count)
	for i := range msgs {
		msgs[i] = NewMessage(fmt.Sprintf("n%d", i), round, interval.Interval{Center: center, HalfWidth: halfWidth})
	}
	return msgs
}

func TestNewNodeValidation(t *testing.T) {
	seed := interval.Interval{Center: 25, HalfWidth: 2.5}
	_, err := NewNode("x", interval.Interval{Center: math.NaN(), HalfWidth: 1}, testParams(10), aggregate.NewGeometricMedian(), nil)
	assert.Error(t, err)
	_, err = NewNode("x", seed, Params{Tau: 0.2}, aggregate.NewGeometricMedian(), nil)
	assert.Error(t, err, "NumNodes required")
}

func TestStepContractsTowardAgreement(t *testing.T) {
	node := newTestNode(t, 10)
	rep := node.Step(1, honestInbox(1, 8, 26.0, 2.5), nil)

	assert.Equal(t, 8, rep.Accepted)
	assert.InDelta(t, 0.8, rep.Support, 1e-12)
	assert.True(t, rep.Updated)
	assert.Greater(t, rep.Interval.Center, 25.0)
	assert.Less(t, rep.Interval.HalfWidth, 2.5)
}

func TestStepZeroAcceptedRetainsInterval(t *testing.T) {
	node := newTestNode(t, 10)
	before := node.State().Interval

	rep := node.Step(1, nil, nil)
	assert.True(t, rep.WeakSupport)
	assert.False(t, rep.Updated)
	assert.Equal(t, before, node.State().Interval)

	// Disjoint senders are filtered; still a weak-support round.
	rep = node.Step(2, honestInbox(2, 5, 80.0, 1.0), nil)
	assert.True(t, rep.WeakSupport)
	assert.Equal(t, 0, rep.Accepted)
	assert.Equal(t, before, node.State().Interval)
}

func TestStepRejectsMalformedAsByzantine(t *testing.T) {
	node := newTestNode(t, 10)
	inbox := honestInbox(1, 4, 25.2, 2.5)
	inbox = append(inbox,
		Message{Sender: "evil1", Round: 1, Center: math.NaN(), HalfWidth: 1},
		Message{Sender: "evil2", Round: 1, Center: 25.0, HalfWidth: -3},
		Message{Sender: "evil3", Round: 1, Center: math.Inf(1), HalfWidth: 1},
	)
	rep := node.Step(1, inbox, nil)
	assert.Equal(t, 4, rep.Accepted)
}

func TestStepIgnoresOwnAndDuplicateMessages(t *testing.T) {
	node := newTestNode(t, 10)
	inbox := honestInbox(1, 3, 25.1, 2.5)
	inbox = append(inbox, node.Emit(1))          // own echo
	inbox = append(inbox, inbox[0], inbox[1])    // channel duplicates
	rep := node.Step(1, inbox, nil)
	assert.Equal(t, 3, rep.Delivered)
	assert.Equal(t, 3, rep.Accepted)
}

func TestHalfWidthNeverExceedsW0(t *testing.T) {
	node := newTestNode(t, 10)
	w0 := node.State().Interval.HalfWidth
	for round := 1; round <= 50; round++ {
		node.Step(round, honestInbox(round, 7, 25.0, 2.0), nil)
		hw := node.State().Interval.HalfWidth
		assert.LessOrEqual(t, hw, w0, "round %d", round)
	}
}

func TestHalfWidthMonotoneWithoutChange(t *testing.T) {
	node := newTestNode(t, 10)
	prev := node.State().Interval.HalfWidth
	for round := 1; round <= 30; round++ {
		node.Step(round, honestInbox(round, 6, 25.0+0.01*float64(round), 2.0), nil)
		hw := node.State().Interval.HalfWidth
		assert.LessOrEqual(t, hw, prev, "round %d", round)
		prev = hw
	}
}

func TestWeakSupportThrottlesLambda(t *testing.T) {
	node := newTestNode(t, 100)
	// 10 accepted of 100 -> support 0.1 < theta.
	rep := node.Step(1, honestInbox(1, 10, 25.5, 2.5), nil)
	assert.InDelta(t, 0.04, rep.Lambda, 1e-12, "lambda_min/2")
}

func TestChangeDetectionEntersRestabilizing(t *testing.T) {
	params := testParams(10)
	params.WidenOnChange = true
	params.ResetLambdaOnChange = true
	seed := interval.Interval{Center: 25.0, HalfWidth: 2.5}
	node, err := NewNode("self", seed, params, aggregate.NewGeometricMedian(), detect.NewCUSUM(0.5, 2.0))
	require.NoError(t, err)

	// Converge on 25 with steady readings.
	reading := 25.0
	for round := 1; round <= 30; round++ {
		node.Step(round, honestInbox(round, 8, 25.0, 2.0), &reading)
	}
	node.MarkStable()
	require.Equal(t, PhaseStable, node.State().Phase)
	narrow := node.State().Interval.HalfWidth

	// Ground truth steps to 28; fresh readings follow it.
	stepped := 28.0
	var detected bool
	for round := 31; round <= 36 && !detected; round++ {
		rep := node.Step(round, honestInbox(round, 8, 25.0, 2.0), &stepped)
		detected = rep.ChangeDetected
	}
	require.True(t, detected, "CUSUM must trigger within 5 rounds of the step")
	assert.Equal(t, PhaseRestabilizing, node.State().Phase)
	assert.Greater(t, node.State().Interval.HalfWidth, narrow, "width reset on change")

	// While re-stabilizing with strong support, lambda boosts to max.
	rep := node.Step(40, honestInbox(40, 8, 27.9, node.State().Interval.HalfWidth), &stepped)
	assert.Equal(t, params.Contraction.LambdaMax, rep.Lambda)
}

func TestStateSnapshotIsACopy(t *testing.T) {
	node := newTestNode(t, 10)
	node.Step(1, honestInbox(1, 5, 25.0, 2.5), nil)
	st := node.State()
	require.NotEmpty(t, st.SupportHistory)
	st.SupportHistory[0] = 99
	assert.NotEqual(t, 99.0, node.State().SupportHistory[0])
}

func TestSetComponentIsBookkeepingOnly(t *testing.T) {
	node := newTestNode(t, 10)
	node.SetComponent("comp-a")
	before := node.State().Interval
	node.Step(1, honestInbox(1, 6, 25.3, 2.5), nil)
	after := node.State().Interval
	node2 := newTestNode(t, 10)
	node2.SetComponent("comp-b")
	node2.Step(1, honestInbox(1, 6, 25.3, 2.5), nil)
	assert.Equal(t, after, node2.State().Interval, "component id must not influence the update")
	assert.NotEqual(t, before, after)
	assert.Equal(t, "comp-a", node.State().ComponentID)
}

func TestDisableVoteAdmitsDisplacedCluster(t *testing.T) {
	// The cluster at 28.4 passes the pairwise IoU gate but sits outside
	// the vote bandwidth around the honest mode.
	inbox := honestInbox(1, 5, 25.0, 2.5)
	inbox = append(inbox,
		NewMessage("m0", 1, interval.Interval{Center: 28.4, HalfWidth: 3}),
		NewMessage("m1", 1, interval.Interval{Center: 28.5, HalfWidth: 3}),
		NewMessage("m2", 1, interval.Interval{Center: 28.5, HalfWidth: 3}),
	)
	seed := interval.Interval{Center: 25.0, HalfWidth: 2.5}

	defended, err := NewNode("self", seed, testParams(10), aggregate.NewTrimmedMean(0, 0, 0.5), detect.None{})
	require.NoError(t, err)
	rep := defended.Step(1, inbox, nil)
	assert.Equal(t, 5, rep.Accepted, "the vote discards the displaced cluster")

	params := testParams(10)
	params.DisableVote = true
	ablated, err := NewNode("self", seed, params, aggregate.NewTrimmedMean(0, 0, 0.5), detect.None{})
	require.NoError(t, err)
	rep = ablated.Step(1, inbox, nil)
	assert.Equal(t, 8, rep.Accepted, "without the vote only the pairwise gate applies")
	assert.Greater(t, ablated.State().Interval.Center, defended.State().Interval.Center)
}

func TestTrimmedMeanWeightsTighterIntervals(t *testing.T) {
	seed := interval.Interval{Center: 25.0, HalfWidth: 2.5}
	inboxFor := func(round int, widths [3]float64) []Message {
		centers := [3]float64{24.0, 25.0, 26.0}
		msgs := make([]Message, 3)
		for i := range msgs {
			msgs[i] = NewMessage(fmt.Sprintf("n%d", i), round, interval.Interval{Center: centers[i], HalfWidth: widths[i]})
		}
		return msgs
	}

	weighted, err := NewNode("self", seed, testParams(4), aggregate.NewTrimmedMean(0, 0, 0.5), detect.None{})
	require.NoError(t, err)
	rep := weighted.Step(1, inboxFor(1, [3]float64{4.0, 2.0, 0.5}), nil)
	require.Equal(t, 3, rep.Accepted)
	assert.Greater(t, rep.Interval.Center, 25.05, "the tight interval at 26 must pull the aggregate")

	uniform, err := NewNode("self", seed, testParams(4), aggregate.NewTrimmedMean(0, 0, 0.5), detect.None{})
	require.NoError(t, err)
	rep = uniform.Step(1, inboxFor(1, [3]float64{2.0, 2.0, 2.0}), nil)
	require.Equal(t, 3, rep.Accepted)
	assert.InDelta(t, 25.0, rep.Interval.Center, 1e-9, "equal widths reduce to the plain trimmed mean")
	assert.Greater(t, weighted.State().Interval.Center, uniform.State().Interval.Center)
}

// Re-stabilization after a detected step must be faster than the
// original convergence from an uninformed boot prior: the change
// response starts from a tracking node (lambda boosted to max, width
// reset to exactly W0) while the cold start crosses a larger gap on
// adaptive lambda alone.
func TestRestabilizationBeatsColdStart(t *testing.T) {
	const (
		truth0    = 25.0
		truth1    = 28.0
		noise     = 0.3
		stepRound = 40
		rounds    = 70
	)
	params := testParams(10)
	params.Contraction.WMax = 0.5
	params.ResetLambdaOnChange = true
	params.WidenOnChange = true

	// Boot prior: wide and offset from the truth, as a node with no
	// sensing history would start.
	prior := interval.Interval{Center: 20.0, HalfWidth: 5.0}
	node, err := NewNode("self", prior, params, aggregate.NewGeometricMedian(), detect.NewCUSUM(2.5*noise, 6*noise))
	require.NoError(t, err)

	tracker := stability.NewTracker(1.0)
	rng := rand.New(rand.NewSource(17))
	changeRound := -1

	for round := 1; round <= rounds; round++ {
		truth := truth0
		if round >= stepRound {
			truth = truth1
		}
		inbox := make([]Message, 9)
		for i := range inbox {
			iv := interval.Interval{Center: truth + rng.NormFloat64()*noise, HalfWidth: 3.0}
			inbox[i] = NewMessage(fmt.Sprintf("n%d", i), round, iv)
		}
		reading := truth + rng.NormFloat64()*noise
		rep := node.Step(round, inbox, &reading)
		if rep.ChangeDetected && changeRound < 0 && round >= stepRound {
			changeRound = round
		}
		tracker.RecordRound(round, truth, map[string]stability.Obs{
			"self": {Center: rep.Interval.Center, Component: "c0", ChangeDetected: rep.ChangeDetected},
		})
	}

	require.GreaterOrEqual(t, changeRound, stepRound, "the step must be detected")
	assert.LessOrEqual(t, changeRound, stepRound+5, "detection latency exceeded five rounds")

	rep := tracker.NodeReport("self")
	require.GreaterOrEqual(t, rep.TConv, 1, "the boot prior must start outside the epsilon ball")
	require.NotEmpty(t, rep.Restabs, "re-entry after the change must be recorded")
	assert.Less(t, rep.Restabs[0], rep.TConv,
		"recovery from a detected change must beat the cold-start convergence time")
}
