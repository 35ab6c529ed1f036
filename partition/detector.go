package partition

import "sort"

// Detector maintains, per node, the last round a message arrived from
// each peer, and derives connected components under a liveness window L.
type Detector struct {
	ids      []string
	index    map[string]int
	liveness int
	// lastHeard[receiver][sender] = last round a message from sender
	// reached receiver; -1 means never.
	lastHeard [][]int
}

// NewDetector tracks the given node ids with liveness window L rounds.
func NewDetector(ids []string, liveness int) *Detector {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	idx := make(map[string]int, len(sorted))
	for i, id := range sorted {
		idx[id] = i
	}
	heard := make([][]int, len(sorted))
	for i := range heard {
		heard[i] = make([]int, len(sorted))
		for j := range heard[i] {
			heard[i][j] = -1
		}
	}
	if liveness < 1 {
		liveness = 1
	}
	return &Detector{ids: sorted, index: idx, liveness: liveness, lastHeard: heard}
}

// Observe records that a message from `from` reached `to` in `round`.
func (d *Detector) Observe(round int, from, to string) {
	fi, ok1 := d.index[from]
	ti, ok2 := d.index[to]
	if !ok1 || !ok2 || fi == ti {
		return
	}
	if round > d.lastHeard[ti][fi] {
		d.lastHeard[ti][fi] = round
	}
}

// reachable reports whether either direction of the pair heard the other
// within the liveness window at the given round.
func (d *Detector) reachable(round, a, b int) bool {
	if r := d.lastHeard[a][b]; r >= 0 && round-r < d.liveness {
		return true
	}
	if r := d.lastHeard[b][a]; r >= 0 && round-r < d.liveness {
		return true
	}
	return false
}

// Components recomputes connected components for the round. The returned
// map assigns every node a component id: the smallest member id, so ids
// are stable while membership is.
func (d *Detector) Components(round int) map[string]string {
	uf := newUnionFind(len(d.ids))
	for a := 0; a < len(d.ids); a++ {
		for b := a + 1; b < len(d.ids); b++ {
			if d.reachable(round, a, b) {
				uf.union(a, b)
			}
		}
	}

	// Smallest member id per root; ids are sorted, so the first index
	// seen for a root is its minimum.
	rootName := make(map[int]string)
	for i, id := range d.ids {
		r := uf.find(i)
		if _, ok := rootName[r]; !ok {
			rootName[r] = id
		}
	}
	out := make(map[string]string, len(d.ids))
	for i, id := range d.ids {
		out[id] = rootName[uf.find(i)]
	}
	return out
}

// Members returns the nodes of each component for the round.
func (d *Detector) Members(round int) map[string][]string {
	comps := d.Components(round)
	out := make(map[string][]string)
	for id, c := range comps {
		out[c] = append(out[c], id)
	}
	for _, members := range out {
		sort.Strings(members)
	}
	return out
}
