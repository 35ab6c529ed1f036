package sensors

import (
	"math/rand"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
)

// Sensor is an honest sensor: y(t) = x*(t) + N(0, sigma^2). Each sensor
// owns its RNG so node updates stay independent and a run is
// reproducible from the experiment seed.
type Sensor struct {
	id       int
	truth    GroundTruth
	noiseStd float64
	rng      *rand.Rand
}

// NewSensor derives the sensor's RNG stream from seed+id, matching the
// per-sensor seeding convention of the rest of the simulation.
func NewSensor(id int, truth GroundTruth, noiseStd float64, seed int64) *Sensor {
	return &Sensor{
		id:       id,
		truth:    truth,
		noiseStd: noiseStd,
		rng:      rand.New(rand.NewSource(seed + int64(id))),
	}
}

// Read samples one noisy measurement at simulated time t.
func (s *Sensor) Read(t float64) float64 {
	return s.truth.Value(t) + s.rng.NormFloat64()*s.noiseStd
}

// Interval wraps a reading in a confidence interval of the given
// half-width (callers typically pass 2*sigma, ~95% coverage).
func (s *Sensor) Interval(reading, halfWidth float64) interval.Interval {
	return interval.Interval{Center: reading, HalfWidth: halfWidth}
}
