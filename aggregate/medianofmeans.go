package aggregate

import "math"

// MedianOfMeans partitions values into Groups groups, averages each group
// and takes the median of the group means. Robust to a bounded adversarial
// fraction per group.
type MedianOfMeans struct {
	// Groups is the number of groups k. When 0 the estimator picks
	// k = ceil(sqrt(n)), which balances per-group averaging against the
	// number of means the median sees.
	Groups int
}

func NewMedianOfMeans(groups int) *MedianOfMeans {
	return &MedianOfMeans{Groups: groups}
}

func (m *MedianOfMeans) Name() string { return NameMedianOfMeans }

func (m *MedianOfMeans) groups(n int) int {
	k := m.Groups
	if k <= 0 {
		k = int(math.Ceil(math.Sqrt(float64(n))))
	}
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}
	return k
}

func (m *MedianOfMeans) Aggregate(values []float64) (Result, error) {
	n := len(values)
	if n == 0 {
		return Result{}, ErrNoValues
	}
	k := m.groups(n)

	means := make([]float64, 0, k)
	size := n / k
	extra := n % k
	idx := 0
	for g := 0; g < k; g++ {
		sz := size
		if g < extra {
			sz++
		}
		if sz == 0 {
			continue
		}
		means = append(means, mean(values[idx:idx+sz]))
		idx += sz
	}
	return Result{Center: Median(means)}, nil
}
