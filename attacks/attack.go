// Package attacks implements the Byzantine emission strategies. A
// strategy is a capability tag on a node's message-emission function
// only: the consensus core never sees or branches on it.
package attacks

import (
	"fmt"
	"math/rand"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/interval"
)

// Strategy names, matching the attack-mix configuration keys.
const (
	NameMimic    = "MIMIC"
	NameSpike    = "SPIKE"
	NameDrift    = "DRIFT"
	NameCollider = "COLLIDER"
	NameRandom   = "RANDOM"
)

// View is what an attacker can observe when crafting an interval: the
// ground truth (Byzantine nodes may know it) and, once overheard, the
// honest neighborhood's estimate and interval width.
type View struct {
	Truth           float64
	HonestCenter    float64
	HonestHalfWidth float64
	HasHonest       bool
}

// Strategy crafts one adversarial interval per round.
type Strategy interface {
	Name() string
	Craft(round int, view View) interval.Interval
}

// Jammer is implemented by strategies that additionally attack the
// physical layer by sending collision-inducing packets.
type Jammer interface {
	ShouldJam() bool
}

// Params carries the per-strategy knobs from configuration.
type Params struct {
	MimicBias            float64
	MimicIoUTarget       float64
	MimicWidthMultiplier float64
	SpikeMagnitude       float64
	DriftRate            float64
	DriftMax             float64
	ColliderJamProb      float64
	RandomRange          float64
}

// DefaultParams mirrors the baseline adversarial configuration.
func DefaultParams() Params {
	return Params{
		MimicBias:            0.5,
		MimicIoUTarget:       0.20,
		MimicWidthMultiplier: 1.2,
		SpikeMagnitude:       20.0,
		DriftRate:            0.1,
		DriftMax:             5.0,
		ColliderJamProb:      0.3,
		RandomRange:          10.0,
	}
}

// attackSeedOffset keeps attacker RNG streams disjoint from sensor
// streams derived from the same experiment seed.
const attackSeedOffset = 1000

func attackRNG(seed int64, nodeID int) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(nodeID) + attackSeedOffset))
}

// ByName builds the strategy selected by configuration for one node.
func ByName(name string, nodeID int, seed int64, p Params) (Strategy, error) {
	switch name {
	case NameMimic:
		return NewMimic(nodeID, seed, p), nil
	case NameSpike:
		return NewSpike(nodeID, seed, p), nil
	case NameDrift:
		return NewDrift(nodeID, seed, p), nil
	case NameCollider:
		return NewCollider(nodeID, seed, p), nil
	case NameRandom:
		return NewRandom(nodeID, seed, p), nil
	default:
		return nil, fmt.Errorf("unknown attack %q", name)
	}
}
