// Package stability is the validation-side instrumentation that tracks
// epsilon-agreement over time. It compares node centers against the
// reference (ground truth) value, which the nodes themselves never see;
// nothing here feeds back into consensus decisions.
package stability

import "math"

// Window is one contiguous INSIDE-epsilon span, scoped to a component.
// Exit is -1 while the window is open.
type Window struct {
	Enter     int    `json:"enter"`
	Exit      int    `json:"exit"`
	Component string `json:"component"`
}

// Obs is one node's per-round observation.
type Obs struct {
	Center         float64
	Component      string
	ChangeDetected bool
}

// Report summarizes one node's (or component's) stability history.
type Report struct {
	// TConv is the round of first epsilon-entry, -1 if never entered.
	TConv int
	// UptimeFraction is INSIDE rounds over total recorded rounds.
	UptimeFraction float64
	// Restabs lists rounds-from-detected-change to the next entry.
	Restabs []int
	Windows []Window
}

type track struct {
	windows       []Window
	inside        bool
	firstEntry    int
	insideRounds  int
	total         int
	pendingChange int
	restabs       []int
	component     string
}

func newTrack() *track {
	return &track{firstEntry: -1, pendingChange: -1}
}

// Tracker records INSIDE/OUTSIDE epsilon transitions per node and,
// independently, per component (a component is INSIDE only when every
// member is).
type Tracker struct {
	epsilon float64
	nodes   map[string]*track
	comps   map[string]*track
	rounds  int
}

func NewTracker(epsilon float64) *Tracker {
	return &Tracker{
		epsilon: epsilon,
		nodes:   make(map[string]*track),
		comps:   make(map[string]*track),
	}
}

func (tr *Tracker) node(id string) *track {
	t, ok := tr.nodes[id]
	if !ok {
		t = newTrack()
		tr.nodes[id] = t
	}
	return t
}

// RecordRound ingests one round of observations against the reference
// value. Component membership changes close the active window and open a
// new one scoped to the new component; global agreement is never assumed.
func (tr *Tracker) RecordRound(round int, reference float64, obs map[string]Obs) {
	tr.rounds++

	compInside := make(map[string]bool)
	compSeen := make(map[string]bool)

	for id, o := range obs {
		t := tr.node(id)
		insideNow := math.Abs(o.Center-reference) <= tr.epsilon

		if t.inside && o.Component != t.component {
			// Membership changed: re-scope the active window.
			tr.closeWindow(t, round)
			tr.openWindow(t, round, o.Component)
		}
		t.component = o.Component

		tr.step(t, round, insideNow, o.Component)
		if o.ChangeDetected {
			t.pendingChange = round
		}

		if !compSeen[o.Component] {
			compSeen[o.Component] = true
			compInside[o.Component] = true
		}
		if !insideNow {
			compInside[o.Component] = false
		}
	}

	for comp, inside := range compInside {
		t, ok := tr.comps[comp]
		if !ok {
			t = newTrack()
			tr.comps[comp] = t
		}
		tr.step(t, round, inside, comp)
	}
	// Components that vanished this round (split or merge) close out.
	for comp, t := range tr.comps {
		if !compSeen[comp] && t.inside {
			tr.closeWindow(t, round)
			t.inside = false
		}
	}
}

func (tr *Tracker) step(t *track, round int, insideNow bool, comp string) {
	t.total++
	switch {
	case insideNow && !t.inside:
		tr.openWindow(t, round, comp)
		t.inside = true
		if t.firstEntry < 0 {
			t.firstEntry = round
		}
		if t.pendingChange >= 0 {
			t.restabs = append(t.restabs, round-t.pendingChange)
			t.pendingChange = -1
		}
	case !insideNow && t.inside:
		tr.closeWindow(t, round)
		t.inside = false
	}
	if insideNow {
		t.insideRounds++
	}
}

func (tr *Tracker) openWindow(t *track, round int, comp string) {
	t.windows = append(t.windows, Window{Enter: round, Exit: -1, Component: comp})
}

func (tr *Tracker) closeWindow(t *track, round int) {
	if n := len(t.windows); n > 0 && t.windows[n-1].Exit < 0 {
		t.windows[n-1].Exit = round
	}
}

func report(t *track) Report {
	r := Report{TConv: t.firstEntry, Restabs: append([]int(nil), t.restabs...)}
	r.Windows = append([]Window(nil), t.windows...)
	if t.total > 0 {
		r.UptimeFraction = float64(t.insideRounds) / float64(t.total)
	}
	return r
}

// NodeReport returns the stability history of one node.
func (tr *Tracker) NodeReport(id string) Report {
	t, ok := tr.nodes[id]
	if !ok {
		return Report{TConv: -1}
	}
	return report(t)
}

// ComponentReport returns the stability history of one component.
func (tr *Tracker) ComponentReport(comp string) Report {
	t, ok := tr.comps[comp]
	if !ok {
		return Report{TConv: -1}
	}
	return report(t)
}

// Components lists component ids ever observed.
func (tr *Tracker) Components() []string {
	out := make([]string, 0, len(tr.comps))
	for c := range tr.comps {
		out = append(out, c)
	}
	return out
}

// AllInside reports whether every tracked node is currently INSIDE.
func (tr *Tracker) AllInside() bool {
	if len(tr.nodes) == 0 {
		return false
	}
	for _, t := range tr.nodes {
		if !t.inside {
			return false
		}
	}
	return true
}
