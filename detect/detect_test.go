package detect

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{NameCUSUM, NameGLR, NameNone, "none", ""} {
		d, err := ByName(name)
		require.NoError(t, err, name)
		require.NotNil(t, d)
	}
	_, err := ByName("ewma")
	assert.Error(t, err)
}

func TestNoneNeverTriggers(t *testing.T) {
	d := None{}
	for i := 0; i < 100; i++ {
		assert.False(t, d.Observe(float64(i*10)))
	}
}

func feedStep(d Detector, preRounds, postRounds int, pre, post, noise float64, seed int64) int {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < preRounds; i++ {
		if d.Observe(pre + rng.NormFloat64()*noise) {
			return -1 // false alarm
		}
	}
	for i := 0; i < postRounds; i++ {
		if d.Observe(post + rng.NormFloat64()*noise) {
			return i
		}
	}
	return -2 // missed
}

func TestCUSUMDetectsStepWithinFiveRounds(t *testing.T) {
	d := NewCUSUM(1.25, 3.0)
	delay := feedStep(d, 40, 20, 25.0, 28.0, 0.15, 1)
	require.NotEqual(t, -1, delay, "false alarm before the step")
	require.NotEqual(t, -2, delay, "step missed")
	assert.LessOrEqual(t, delay, 4, "trigger within 5 rounds of the change")
}

func TestCUSUMDetectsDownwardStep(t *testing.T) {
	d := NewCUSUM(1.25, 3.0)
	delay := feedStep(d, 40, 20, 28.0, 25.0, 0.15, 2)
	require.GreaterOrEqual(t, delay, 0)
	assert.LessOrEqual(t, delay, 4)
}

func TestCUSUMNoFalseAlarmOnStationary(t *testing.T) {
	d := NewCUSUM(1.25, 3.0)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		assert.False(t, d.Observe(25.0+rng.NormFloat64()*0.1), "round %d", i)
	}
}

func TestCUSUMFalseAlarmRateAtBaselineNoise(t *testing.T) {
	// Stationary truth at the baseline sensor noise sigma=0.5. The
	// drift allowance (2.5 sigma) and warmup-mean baseline must keep
	// false triggers rare; a noisy detector forces spurious
	// re-stabilization on every honest node it runs in.
	alarmed := 0
	for stream := 0; stream < 100; stream++ {
		d := NewCUSUM(1.25, 3.0)
		rng := rand.New(rand.NewSource(int64(100 + stream)))
		for i := 0; i < 200; i++ {
			if d.Observe(25.0 + rng.NormFloat64()*0.5) {
				alarmed++
				break
			}
		}
	}
	assert.LessOrEqual(t, alarmed, 5, "streams with false alarms: %d/100", alarmed)
}

func TestCUSUMWarmupNeverTriggers(t *testing.T) {
	d := NewCUSUM(1.25, 3.0)
	// The baseline is still forming; nothing can trigger yet.
	for i := 0; i < d.Warmup; i++ {
		assert.False(t, d.Observe(float64(i*50)))
	}
}

func TestCUSUMBaselineAveragesWarmup(t *testing.T) {
	d := NewCUSUM(1.25, 3.0)
	// One outlier inside the warmup window must not set the target on
	// its own; the averaged baseline keeps a stationary tail quiet.
	samples := []float64{25.1, 27.0, 24.9, 25.0, 25.0}
	for _, x := range samples {
		require.False(t, d.Observe(x))
	}
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 300; i++ {
		assert.False(t, d.Observe(25.0+rng.NormFloat64()*0.3), "round %d", i)
	}
}

func TestCUSUMRebaselinesAfterTrigger(t *testing.T) {
	d := NewCUSUM(1.25, 3.0)
	delay := feedStep(d, 30, 20, 25.0, 28.0, 0.1, 4)
	require.GreaterOrEqual(t, delay, 0)

	// After the trigger the detector baselines at 28 and must catch the
	// return to 25.
	delay = feedStep(d, 10, 20, 28.0, 25.0, 0.1, 5)
	require.GreaterOrEqual(t, delay, 0)
	assert.LessOrEqual(t, delay, 4)
}

func TestGLRDetectsStep(t *testing.T) {
	d := NewGLR(30, 10.0)
	delay := feedStep(d, 40, 30, 25.0, 28.0, 0.15, 6)
	require.NotEqual(t, -1, delay, "false alarm before the step")
	require.NotEqual(t, -2, delay, "step missed")
	assert.LessOrEqual(t, delay, 10)
}

func TestGLRNoFalseAlarmOnStationary(t *testing.T) {
	d := NewGLR(30, 10.0)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		assert.False(t, d.Observe(25.0+rng.NormFloat64()*0.2), "round %d", i)
	}
}

func TestGLRWarmup(t *testing.T) {
	d := NewGLR(30, 10.0)
	// Fewer than 2*MinSegment observations can never trigger, even on a
	// wild sequence.
	for i := 0; i < 2*d.MinSegment-1; i++ {
		assert.False(t, d.Observe(float64(i*100)))
	}
}
