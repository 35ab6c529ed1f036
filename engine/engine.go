// Package engine runs one experiment: it wires the sensors, attackers,
// channel and consensus nodes together and drives the round-synchronous
// loop. Within a round all node updates are independent and run on a
// worker pool; the only synchronization point is the round barrier.
package engine

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/aggregate"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/attacks"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/config"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/consensus"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/detect"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/metrics"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/network"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/partition"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/sensors"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/stability"
)

// Run statuses.
const (
	StatusConverged     = "converged"
	StatusNonConvergent = "non-convergent"
	StatusCanceled      = "canceled"
)

// Options configures a single run. Zero values fall back to sensible
// defaults; only Experiment is required.
type Options struct {
	Experiment config.Experiment
	Seed       int64

	Logger   *zap.Logger
	Registry prometheus.Registerer
	Trace    *Recorder

	// Clock drives wall-time measurement; tests may inject a mock.
	Clock clock.Clock

	// Workers bounds the per-round update pool; 0 means NumCPU.
	Workers int

	// StopWhenStable ends the run early once every component has been
	// inside the epsilon ball for StabilityRounds consecutive rounds.
	StopWhenStable bool
}

// Result summarizes a finished run.
type Result struct {
	RunID  string
	Status string
	Rounds int

	// FirstAllInside is the first round with every honest node inside
	// the epsilon ball, -1 if never reached.
	FirstAllInside int

	Honest    []string
	Byzantine []string

	Metrics       []metrics.Round
	Nodes         map[string]stability.Report
	Components    map[string][]string
	FinalStates   map[string]consensus.NodeState
	DeliveryRatio float64

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

type byzNode struct {
	id       string
	strategy attacks.Strategy
}

// Engine owns all run state. Not safe for concurrent Runs; build one
// engine per run.
type Engine struct {
	opts  Options
	exp   config.Experiment
	log   *zap.Logger
	clk   clock.Clock
	runID string

	ids       []string
	honest    []*consensus.Node
	honestIDs []string
	byz       []byzNode
	byzIDs    []string

	sensors map[string]*sensors.Sensor
	truth   sensors.GroundTruth

	channel   *network.Channel
	partition *partition.Detector
	tracker   *stability.Tracker
	collector *metrics.Collector

	secondsPerRound float64
	workers         int
}

// New assembles a run from a validated experiment.
func New(opts Options) (*Engine, error) {
	exp := opts.Experiment
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	truth, err := exp.GroundTruth.Model()
	if err != nil {
		return nil, err
	}

	n := exp.Network.NumNodes
	f := exp.NumByzantine()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("node-%03d", i)
	}
	honestIDs := ids[:n-f]
	byzIDs := ids[n-f:]

	lora := exp.Network.ToLoRa()
	if err := lora.Validate(); err != nil {
		return nil, err
	}
	channel, err := network.NewChannel(ids, network.ChannelConfig{
		LoRa:     lora,
		DupeProb: exp.Network.DupeProb,
		Seed:     opts.Seed,
	})
	if err != nil {
		return nil, err
	}
	// The duty cycle sets the round cadence: one broadcast per node per
	// round, spaced by the mandated silence T/D.
	secondsPerRound := lora.Airtime(exp.Network.PayloadBytes).Seconds() / lora.DutyCycle

	e := &Engine{
		opts:            opts,
		exp:             exp,
		log:             log,
		clk:             clk,
		ids:             ids,
		honestIDs:       honestIDs,
		byzIDs:          byzIDs,
		sensors:         make(map[string]*sensors.Sensor, len(honestIDs)),
		truth:           truth,
		channel:         channel,
		partition:       partition.NewDetector(ids, exp.Consensus.LivenessWindow),
		tracker:         stability.NewTracker(exp.Consensus.Epsilon),
		secondsPerRound: secondsPerRound,
		workers:         workers,
	}

	if err := e.buildHonest(); err != nil {
		return nil, err
	}
	if err := e.buildByzantine(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) buildHonest() error {
	c := e.exp.Consensus
	params := consensus.Params{
		Tau:      c.IoUThreshold,
		NumNodes: e.exp.Network.NumNodes,
		Contraction: consensus.ContractionParams{
			LambdaMin:        c.LambdaMin,
			LambdaMax:        c.LambdaMax,
			SupportThreshold: c.VoteThreshold,
			WMax:             c.InitialCIWidth,
		},
		DisableVote:         c.DisableVoter,
		ResetLambdaOnChange: c.ResetLambda,
		WidenOnChange:       c.WidenOnChange,
	}

	for i, id := range e.honestIDs {
		sensor := sensors.NewSensor(i, e.truth, c.NoiseStdDev, e.opts.Seed)
		e.sensors[id] = sensor

		agg, err := aggregate.ByName(c.Estimator)
		if err != nil {
			return err
		}
		if c.Estimator == aggregate.NameTrimmedMean {
			// Honor the configured trim: at least TrimMin values per side,
			// at most the configured fraction.
			minFrac := float64(c.TrimMin) / float64(e.exp.Network.NumNodes)
			agg = aggregate.NewTrimmedMean(c.TrimMaxFraction, minFrac, c.TrimMaxFraction)
		}
		det, err := detect.ByName(c.ChangeDetection)
		if err != nil {
			return err
		}
		if c.ChangeDetection == detect.NameCUSUM && c.NoiseStdDev > 0 {
			// Scale drift and threshold to the configured sensor noise so
			// a stationary truth does not walk the statistics across the
			// trigger level.
			det = detect.NewCUSUM(2.5*c.NoiseStdDev, 6*c.NoiseStdDev)
		}
		seed := sensor.Interval(sensor.Read(0), c.InitialCIWidth)
		node, err := consensus.NewNode(id, seed, params, agg, det)
		if err != nil {
			return err
		}
		e.honest = append(e.honest, node)
	}
	return nil
}

// buildByzantine splits the attacker population across the configured
// mix with largest-remainder rounding, so the counts are deterministic
// and sum to f.
func (e *Engine) buildByzantine() error {
	f := len(e.byzIDs)
	if f == 0 {
		return nil
	}
	mix := e.exp.Adversarial.AttackMix
	if len(mix) == 0 {
		mix = map[string]float64{attacks.NameMimic: 1.0}
	}

	names := make([]string, 0, len(mix))
	for name := range mix {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if mix[names[i]] != mix[names[j]] {
			return mix[names[i]] > mix[names[j]]
		}
		return names[i] < names[j]
	})

	counts := make([]int, len(names))
	assigned := 0
	for i, name := range names {
		counts[i] = int(mix[name] * float64(f))
		assigned += counts[i]
	}
	for i := 0; assigned < f; i = (i + 1) % len(names) {
		counts[i]++
		assigned++
	}

	params := e.exp.Adversarial.ToParams()
	idx := 0
	for i, name := range names {
		for j := 0; j < counts[i]; j++ {
			id := e.byzIDs[idx]
			nodeIdx := len(e.honestIDs) + idx
			strategy, err := attacks.ByName(name, nodeIdx, e.opts.Seed, params)
			if err != nil {
				return err
			}
			e.byz = append(e.byz, byzNode{id: id, strategy: strategy})
			idx++
		}
	}
	return nil
}

// SetLinkFilter restricts connectivity, e.g. to force a partition.
func (e *Engine) SetLinkFilter(f func(from, to string) bool) {
	e.channel.SetLinkFilter(f)
}

// Time returns the simulated wall-clock seconds at the start of round r.
func (e *Engine) Time(r int) float64 { return float64(r) * e.secondsPerRound }

// Run drives the round loop until convergence, the round budget, or
// context cancellation.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	e.runID = runID
	e.collector = metrics.NewCollector(e.opts.Registry, runID)
	started := e.clk.Now()

	res := Result{
		RunID:          runID,
		Status:         StatusNonConvergent,
		FirstAllInside: -1,
		Honest:         append([]string(nil), e.honestIDs...),
		Byzantine:      append([]string(nil), e.byzIDs...),
	}
	e.record(EventRunStart, 0, "", map[string]any{
		"name": e.exp.Name, "nodes": len(e.ids), "byzantine": len(e.byzIDs), "seed": e.opts.Seed,
	})
	e.log.Info("run started",
		zap.String("run_id", runID),
		zap.String("experiment", e.exp.Name),
		zap.Int("nodes", len(e.ids)),
		zap.Int("byzantine", len(e.byzIDs)),
		zap.Int64("seed", e.opts.Seed))

	var honestView attacks.View
	stableStreak := 0
	round := 0

	for ; round < e.exp.MaxRounds; round++ {
		if ctx.Err() != nil {
			res.Status = StatusCanceled
			break
		}
		truthNow := e.truth.Value(e.Time(round))

		// Delivery draws happen before any node update, so the round's
		// inputs are fixed for every node.
		events, err := e.deliver(round, honestView)
		if err != nil {
			return res, err
		}
		for _, ev := range events {
			e.partition.Observe(round, ev.From, ev.To)
		}
		components := e.partition.Components(round)

		reports, err := e.step(ctx, round, events)
		if err != nil {
			return res, err
		}

		obs := make(map[string]stability.Obs, len(e.honest))
		for i, node := range e.honest {
			id := e.honestIDs[i]
			node.SetComponent(components[id])
			obs[id] = stability.Obs{
				Center:         reports[i].Interval.Center,
				Component:      components[id],
				ChangeDetected: reports[i].ChangeDetected,
			}
		}
		e.tracker.RecordRound(round, truthNow, obs)
		e.markStable(round)

		honestView = e.honestViewFor(truthNow)

		row := e.measure(round, truthNow, len(events), reports)
		e.collector.Observe(row)
		res.Metrics = append(res.Metrics, row)
		e.record(EventRound, round, "", row)
		for i, rep := range reports {
			if rep.ChangeDetected {
				e.record(EventChange, round, e.honestIDs[i], nil)
			}
		}

		if row.HonestInsideEps == len(e.honest) && res.FirstAllInside < 0 {
			res.FirstAllInside = round
			e.log.Info("all honest nodes inside epsilon",
				zap.String("run_id", runID), zap.Int("round", round))
		}
		if e.tracker.AllInside() {
			stableStreak++
		} else {
			stableStreak = 0
		}
		if e.opts.StopWhenStable && stableStreak >= e.exp.Consensus.StabilityRounds {
			res.Status = StatusConverged
			round++
			break
		}
	}

	if res.Status == StatusNonConvergent && stableStreak >= e.exp.Consensus.StabilityRounds {
		res.Status = StatusConverged
	}
	res.Rounds = round
	res.Nodes = make(map[string]stability.Report, len(e.honestIDs))
	res.FinalStates = make(map[string]consensus.NodeState, len(e.honest))
	for i, node := range e.honest {
		id := e.honestIDs[i]
		res.Nodes[id] = e.tracker.NodeReport(id)
		res.FinalStates[id] = node.State()
	}
	lastRound := round - 1
	if lastRound < 0 {
		lastRound = 0
	}
	res.Components = e.partition.Members(lastRound)
	res.DeliveryRatio = e.channel.DeliveryRatio()
	res.Elapsed = e.clk.Since(started)

	e.record(EventRunEnd, round, "", map[string]any{
		"status": res.Status, "rounds": res.Rounds, "first_all_inside": res.FirstAllInside,
	})
	e.log.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", res.Status),
		zap.Int("rounds", res.Rounds),
		zap.Float64("delivery_ratio", res.DeliveryRatio),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// deliver collects the round's transmissions and samples the channel.
func (e *Engine) deliver(round int, view attacks.View) ([]network.DeliveryEvent, error) {
	txs := make([]network.Transmission, 0, len(e.ids))
	for _, node := range e.honest {
		txs = append(txs, network.Transmission{From: node.ID(), Message: node.Emit(round)})
	}
	truthNow := e.truth.Value(e.Time(round))
	view.Truth = truthNow
	for _, b := range e.byz {
		crafted := b.strategy.Craft(round, view)
		tx := network.Transmission{From: b.id, Message: consensus.NewMessage(b.id, round, crafted)}
		if jammer, ok := b.strategy.(attacks.Jammer); ok {
			tx.Jam = jammer.ShouldJam()
		}
		txs = append(txs, tx)
	}
	return e.channel.Deliver(round, txs)
}

// step runs all honest updates for the round on the worker pool and
// waits at the barrier.
func (e *Engine) step(ctx context.Context, round int, events []network.DeliveryEvent) ([]consensus.StepReport, error) {
	inboxes := make(map[string][]consensus.Message, len(e.honestIDs))
	for _, ev := range events {
		inboxes[ev.To] = append(inboxes[ev.To], ev.Message)
	}

	t := e.Time(round)
	reports := make([]consensus.StepReport, len(e.honest))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, node := range e.honest {
		i, node := i, node
		g.Go(func() error {
			var reading *float64
			if e.exp.Consensus.ContinuousSense {
				v := e.sensors[node.ID()].Read(t)
				reading = &v
			}
			reports[i] = node.Step(round, inboxes[node.ID()], reading)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// markStable promotes honest nodes whose current stability window has
// been open long enough.
func (e *Engine) markStable(round int) {
	need := e.exp.Consensus.StabilityRounds
	for i, node := range e.honest {
		rep := e.tracker.NodeReport(e.honestIDs[i])
		if len(rep.Windows) == 0 {
			continue
		}
		w := rep.Windows[len(rep.Windows)-1]
		if w.Exit < 0 && round-w.Enter+1 >= need && node.State().Phase != consensus.PhaseStable {
			node.MarkStable()
			e.record(EventPhase, round, e.honestIDs[i], map[string]any{"phase": string(consensus.PhaseStable)})
		}
	}
}

// honestViewFor is what attackers can overhear after the round: the
// mean honest center and width around the current truth.
func (e *Engine) honestViewFor(truth float64) attacks.View {
	if len(e.honest) == 0 {
		return attacks.View{Truth: truth}
	}
	var center, width float64
	for _, node := range e.honest {
		st := node.State()
		center += st.Interval.Center
		width += st.Interval.HalfWidth
	}
	n := float64(len(e.honest))
	return attacks.View{
		Truth:           truth,
		HonestCenter:    center / n,
		HonestHalfWidth: width / n,
		HasHonest:       true,
	}
}

func (e *Engine) measure(round int, truth float64, delivered int, reports []consensus.StepReport) metrics.Round {
	row := metrics.Round{
		Round:         round,
		PacketSuccess: e.channel.LastSuccessProbability(),
		Delivered:     delivered,
	}
	var lambda, accepted, absErr, maxErr float64
	eps := e.exp.Consensus.Epsilon
	for _, rep := range reports {
		lambda += rep.Lambda
		accepted += float64(rep.Accepted)
		diff := math.Abs(rep.Interval.Center - truth)
		absErr += diff
		if diff > maxErr {
			maxErr = diff
		}
		if diff <= eps {
			row.HonestInsideEps++
		}
		if rep.WeakSupport {
			row.WeakSupport++
		}
		if rep.Degraded {
			row.Degraded++
		}
		if rep.ChangeDetected {
			row.ChangeSignals++
		}
	}
	if len(reports) > 0 {
		n := float64(len(reports))
		row.MeanLambda = lambda / n
		row.MeanAccepted = accepted / n
		row.MeanAbsError = absErr / n
	}
	row.MaxAbsError = maxErr
	return row
}

func (e *Engine) record(eventType string, round int, node string, payload any) {
	if e.opts.Trace == nil {
		return
	}
	if err := e.opts.Trace.Record(e.runID, eventType, round, node, payload); err != nil {
		e.log.Warn("trace write failed", zap.Error(err))
	}
}

