package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedNodesAreSingletons(t *testing.T) {
	d := NewDetector([]string{"a", "b", "c"}, 3)
	comps := d.Components(0)
	require.Len(t, comps, 3)
	assert.Equal(t, "a", comps["a"])
	assert.Equal(t, "b", comps["b"])
	assert.Equal(t, "c", comps["c"])
}

func TestConnectedPairMerges(t *testing.T) {
	d := NewDetector([]string{"a", "b", "c"}, 3)
	d.Observe(1, "a", "b")
	comps := d.Components(1)
	assert.Equal(t, comps["a"], comps["b"])
	assert.Equal(t, "a", comps["b"], "component id is the smallest member")
	assert.NotEqual(t, comps["a"], comps["c"])
}

func TestLivenessWindowExpiry(t *testing.T) {
	d := NewDetector([]string{"a", "b"}, 3)
	d.Observe(1, "a", "b")

	assert.Equal(t, "a", d.Components(2)["b"], "within window")
	assert.Equal(t, "a", d.Components(3)["b"], "edge of window")
	assert.Equal(t, "b", d.Components(4)["b"], "expired")
}

func TestFreshMessageRenewsReachability(t *testing.T) {
	d := NewDetector([]string{"a", "b"}, 2)
	d.Observe(1, "a", "b")
	d.Observe(5, "a", "b")
	assert.Equal(t, "a", d.Components(6)["b"])
}

func TestSplitIntoTwoComponents(t *testing.T) {
	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5"}
	d := NewDetector(ids, 3)

	// Fully connect {n0,n1,n2} and {n3,n4,n5} separately.
	left := ids[:3]
	right := ids[3:]
	for _, group := range [][]string{left, right} {
		for _, from := range group {
			for _, to := range group {
				if from != to {
					d.Observe(1, from, to)
				}
			}
		}
	}

	comps := d.Components(2)
	for _, id := range left {
		assert.Equal(t, "n0", comps[id])
	}
	for _, id := range right {
		assert.Equal(t, "n3", comps[id])
	}

	members := d.Members(2)
	require.Len(t, members, 2)
	assert.Equal(t, left, members["n0"])
	assert.Equal(t, right, members["n3"])
}

func TestHealingMergesComponents(t *testing.T) {
	d := NewDetector([]string{"a", "b", "c", "d"}, 3)
	d.Observe(1, "a", "b")
	d.Observe(1, "c", "d")
	require.NotEqual(t, d.Components(1)["a"], d.Components(1)["c"])

	d.Observe(2, "b", "c")
	comps := d.Components(2)
	assert.Equal(t, "a", comps["d"], "bridge merges both components")
}

func TestObserveIgnoresUnknownAndSelf(t *testing.T) {
	d := NewDetector([]string{"a", "b"}, 3)
	d.Observe(1, "zz", "a")
	d.Observe(1, "a", "a")
	comps := d.Components(1)
	assert.Equal(t, "a", comps["a"])
	assert.Equal(t, "b", comps["b"])
}
