package config

import (
	"fmt"
	"sort"
)

// Scenario constructors mirror the thesis configurations A-F. Each one
// starts from the baseline and changes only what the configuration is
// meant to exercise, so results stay comparable across scenarios.

// Baseline100N10B is configuration A: N=100, f=10%, SF9, G≈1.0.
func Baseline100N10B() Experiment {
	return Default()
}

// Scaling200N is configuration B: N=200 pushes the offered load to
// G≈2.0 and packet success below 2%.
func Scaling200N() Experiment {
	exp := Default()
	exp.Name = "scaling_200n"
	exp.Description = "N=200, f=10%, SF9 - scaling under G≈2.0"
	exp.Network.NumNodes = 200
	return exp
}

// Security20B is configuration C: f=20%, near the practical Byzantine
// tolerance limit.
func Security20B() Experiment {
	exp := Default()
	exp.Name = "security_20b"
	exp.Description = "N=100, f=20%, SF9 - Byzantine stress"
	exp.Adversarial.ByzantineFraction = 0.20
	return exp
}

// Sparse50N is configuration D: N=50, better packet success but fewer
// redundant paths.
func Sparse50N() Experiment {
	exp := Default()
	exp.Name = "sparse_50n"
	exp.Description = "N=50, f=10%, SF9 - low density, G≈0.5"
	exp.Network.NumNodes = 50
	return exp
}

// SpeedSF7 is configuration E: SF7 cuts airtime roughly 3x against the
// SF9 baseline.
func SpeedSF7() Experiment {
	exp := Default()
	exp.Name = "speed_sf7"
	exp.Description = "N=100, f=10%, SF7 - airtime-limited convergence"
	exp.Network.SpreadingFactor = 7
	return exp
}

// Ideal0B is configuration F: no attackers, best-case reference.
func Ideal0B() Experiment {
	exp := Default()
	exp.Name = "ideal_0b"
	exp.Description = "N=100, f=0%, SF9 - attack-free reference"
	exp.Adversarial.ByzantineFraction = 0
	exp.Adversarial.AttackMix = nil
	return exp
}

var scenarios = map[string]func() Experiment{
	"baseline_100n_10b": Baseline100N10B,
	"scaling_200n":      Scaling200N,
	"security_20b":      Security20B,
	"sparse_50n":        Sparse50N,
	"speed_sf7":         SpeedSF7,
	"ideal_0b":          Ideal0B,
}

// Scenario returns a named scenario from the library.
func Scenario(name string) (Experiment, error) {
	build, ok := scenarios[name]
	if !ok {
		return Experiment{}, fmt.Errorf("unknown scenario %q (available: %v)", name, ScenarioNames())
	}
	return build(), nil
}

// ScenarioNames lists the library in stable order.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
