package sensors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstant(t *testing.T) {
	c := Constant(25.0)
	assert.Equal(t, 25.0, c.Value(0))
	assert.Equal(t, 25.0, c.Value(1e6))
	require.Len(t, c.Changes(), 1)
}

func TestPiecewiseDoorScenario(t *testing.T) {
	p, err := NewPiecewise([]Change{
		{Time: 0, Value: 25.0},
		{Time: 1200, Value: 28.0},
		{Time: 1800, Value: 25.0},
	})
	require.NoError(t, err)

	assert.Equal(t, 25.0, p.Value(600))
	assert.Equal(t, 28.0, p.Value(1200))
	assert.Equal(t, 28.0, p.Value(1500))
	assert.Equal(t, 25.0, p.Value(2000))

	next, ok := p.NextChange(600)
	require.True(t, ok)
	assert.Equal(t, 1200.0, next)
	_, ok = p.NextChange(1800)
	assert.False(t, ok)
}

func TestPiecewiseValidation(t *testing.T) {
	_, err := NewPiecewise(nil)
	assert.Error(t, err)
	_, err = NewPiecewise([]Change{{Time: -5, Value: 1}})
	assert.Error(t, err)
}

func TestPiecewiseSortsChanges(t *testing.T) {
	p, err := NewPiecewise([]Change{
		{Time: 1800, Value: 25.0},
		{Time: 0, Value: 25.0},
		{Time: 1200, Value: 28.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 28.0, p.Value(1300))
}

func TestSensorNoiseStatistics(t *testing.T) {
	s := NewSensor(3, Constant(25.0), 0.5, 42)
	const n = 5000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		r := s.Read(0)
		sum += r
		sumSq += (r - 25.0) * (r - 25.0)
	}
	mean := sum / n
	std := math.Sqrt(sumSq / n)
	assert.InDelta(t, 25.0, mean, 0.05)
	assert.InDelta(t, 0.5, std, 0.05)
}

func TestSensorDeterministicPerSeed(t *testing.T) {
	a := NewSensor(1, Constant(25.0), 0.5, 7)
	b := NewSensor(1, Constant(25.0), 0.5, 7)
	c := NewSensor(2, Constant(25.0), 0.5, 7)
	for i := 0; i < 10; i++ {
		ra, rb := a.Read(0), b.Read(0)
		assert.Equal(t, ra, rb, "same seed and id reproduce")
		assert.NotEqual(t, ra, c.Read(0), "different ids draw independent streams")
	}
}

func TestSensorInterval(t *testing.T) {
	s := NewSensor(0, Constant(25.0), 0.5, 1)
	iv := s.Interval(25.3, 1.0)
	assert.Equal(t, 25.3, iv.Center)
	assert.Equal(t, 1.0, iv.HalfWidth)
}
