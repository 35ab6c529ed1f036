// Package config loads and validates experiment configurations. Every
// knob carries a literature-backed default; Load applies YAML overrides
// on top of the defaults and rejects out-of-range combinations before a
// run starts.
package config

import (
	"fmt"
	"math"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/aggregate"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/attacks"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/detect"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/network"
	"github.com/zrlcode-55/masters-thesis-zachary-larkin/sensors"
)

// Network holds radio and deployment parameters.
type Network struct {
	SpreadingFactor int     `yaml:"spreading_factor"`
	BandwidthHz     int     `yaml:"bandwidth_hz"`
	TxPowerDBm      int     `yaml:"tx_power_dbm"`
	DutyCycle       float64 `yaml:"duty_cycle"`
	CodingRate      int     `yaml:"coding_rate"`
	NumNodes        int     `yaml:"num_nodes"`
	DeploymentAreaM int     `yaml:"deployment_area_m"`
	PayloadBytes    int     `yaml:"payload_bytes"`
	DupeProb        float64 `yaml:"dupe_prob"`
}

// ToLoRa maps the radio fields onto the channel model's configuration.
func (n Network) ToLoRa() network.LoRaConfig {
	cfg := network.DefaultLoRaConfig()
	cfg.SpreadingFactor = n.SpreadingFactor
	cfg.Bandwidth = n.BandwidthHz
	cfg.TxPowerDBm = n.TxPowerDBm
	cfg.DutyCycle = n.DutyCycle
	cfg.CodingRate = n.CodingRate
	return cfg
}

// Consensus holds the agreement-protocol parameters.
type Consensus struct {
	Epsilon         float64 `yaml:"epsilon"`
	InitialCIWidth  float64 `yaml:"initial_ci_width"`
	NoiseStdDev     float64 `yaml:"noise_std_dev"`
	LambdaMin       float64 `yaml:"lambda_min"`
	LambdaMax       float64 `yaml:"lambda_max"`
	IoUThreshold    float64 `yaml:"iou_threshold"`
	VoteThreshold   float64 `yaml:"consistency_vote_threshold"`
	TrimMin         int     `yaml:"trim_min"`
	TrimMaxFraction float64 `yaml:"trim_max_fraction"`
	Estimator       string  `yaml:"estimator"`
	ChangeDetection string  `yaml:"change_detection"`
	// DisableVoter turns off the consistency vote for ablation runs
	// that measure undefended mimicry bias. Leave false in deployments.
	DisableVoter    bool    `yaml:"disable_voter"`
	ResetLambda     bool    `yaml:"reset_lambda_on_change"`
	WidenOnChange   bool    `yaml:"widen_on_change"`
	ContinuousSense bool    `yaml:"continuous_sensing"`
	LivenessWindow  int     `yaml:"liveness_window"`
	StabilityRounds int     `yaml:"stability_rounds"`
}

// Adversarial holds the Byzantine population and attack knobs.
type Adversarial struct {
	ByzantineFraction float64            `yaml:"byzantine_fraction"`
	AttackMix         map[string]float64 `yaml:"attack_mix"`

	MimicBias            float64 `yaml:"mimic_bias"`
	MimicIoUTarget       float64 `yaml:"mimic_iou_target"`
	MimicWidthMultiplier float64 `yaml:"mimic_width_multiplier"`
	SpikeMagnitude       float64 `yaml:"spike_magnitude"`
	DriftRate            float64 `yaml:"drift_rate"`
	DriftMax             float64 `yaml:"drift_max"`
	ColliderJamProb      float64 `yaml:"collider_jam_prob"`
	RandomRange          float64 `yaml:"random_range"`
}

// ToParams maps the attack knobs onto the strategy parameters.
func (a Adversarial) ToParams() attacks.Params {
	return attacks.Params{
		MimicBias:            a.MimicBias,
		MimicIoUTarget:       a.MimicIoUTarget,
		MimicWidthMultiplier: a.MimicWidthMultiplier,
		SpikeMagnitude:       a.SpikeMagnitude,
		DriftRate:            a.DriftRate,
		DriftMax:             a.DriftMax,
		ColliderJamProb:      a.ColliderJamProb,
		RandomRange:          a.RandomRange,
	}
}

// GroundTruth describes the evolving true value.
type GroundTruth struct {
	BaselineValue float64          `yaml:"baseline_value"`
	Changes       []sensors.Change `yaml:"changes"`
}

// Model builds the runtime ground-truth from the configuration.
func (g GroundTruth) Model() (sensors.GroundTruth, error) {
	if len(g.Changes) == 0 {
		return sensors.Constant(g.BaselineValue), nil
	}
	return sensors.NewPiecewise(g.Changes)
}

// Experiment is the complete run description.
type Experiment struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Network     Network     `yaml:"network"`
	Consensus   Consensus   `yaml:"consensus"`
	Adversarial Adversarial `yaml:"adversarial"`
	GroundTruth GroundTruth `yaml:"ground_truth"`

	Seeds     []int64 `yaml:"seeds"`
	MaxRounds int     `yaml:"max_rounds"`
}

// Default returns the baseline experiment configuration. All scenario
// constructors start from it.
func Default() Experiment {
	seeds := make([]int64, 20)
	for i := range seeds {
		seeds[i] = int64(i)
	}
	return Experiment{
		Name:        "baseline",
		Description: "N=100, f=10%, SF9",
		Network: Network{
			SpreadingFactor: 9,
			BandwidthHz:     network.Bandwidth125kHz,
			TxPowerDBm:      14,
			DutyCycle:       0.01,
			CodingRate:      1,
			NumNodes:        100,
			DeploymentAreaM: 1000,
			PayloadBytes:    51,
		},
		Consensus: Consensus{
			Epsilon:         1.0,
			InitialCIWidth:  5.0,
			NoiseStdDev:     0.5,
			LambdaMin:       0.08,
			LambdaMax:       0.18,
			IoUThreshold:    0.20,
			VoteThreshold:   0.50,
			TrimMin:         2,
			TrimMaxFraction: 0.20,
			Estimator:       aggregate.NameGeometricMedian,
			ChangeDetection: detect.NameCUSUM,
			ResetLambda:     true,
			WidenOnChange:   true,
			ContinuousSense: true,
			LivenessWindow:  5,
			StabilityRounds: 10,
		},
		Adversarial: Adversarial{
			ByzantineFraction: 0.10,
			AttackMix: map[string]float64{
				attacks.NameMimic:    0.50,
				attacks.NameCollider: 0.20,
				attacks.NameSpike:    0.20,
				attacks.NameDrift:    0.10,
			},
			MimicBias:            0.5,
			MimicIoUTarget:       0.20,
			MimicWidthMultiplier: 1.2,
			SpikeMagnitude:       20.0,
			DriftRate:            0.1,
			DriftMax:             5.0,
			ColliderJamProb:      0.3,
			RandomRange:          10.0,
		},
		GroundTruth: GroundTruth{
			BaselineValue: 25.0,
			Changes: []sensors.Change{
				{Time: 0, Value: 25.0},
				{Time: 1200, Value: 28.0},
				{Time: 1800, Value: 25.0},
			},
		},
		Seeds:     seeds,
		MaxRounds: 5000,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Experiment, error) {
	exp := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Experiment{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return Experiment{}, fmt.Errorf("parse config: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return Experiment{}, err
	}
	return exp, nil
}

// Save writes the configuration as YAML.
func (e Experiment) Save(path string) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// NumByzantine is the attacker head count implied by the fraction.
func (e Experiment) NumByzantine() int {
	return int(float64(e.Network.NumNodes) * e.Adversarial.ByzantineFraction)
}

// Validate checks all sections and their cross-constraints.
func (e Experiment) Validate() error {
	var err error

	lora := e.Network.ToLoRa()
	if lerr := lora.Validate(); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	if e.Network.NumNodes < 2 {
		err = multierr.Append(err, fmt.Errorf("num_nodes must be at least 2, got %d", e.Network.NumNodes))
	}
	if e.Network.PayloadBytes <= 0 {
		err = multierr.Append(err, fmt.Errorf("payload_bytes must be positive, got %d", e.Network.PayloadBytes))
	}
	if e.Network.DupeProb < 0 || e.Network.DupeProb > 1 {
		err = multierr.Append(err, fmt.Errorf("dupe_prob must be in [0, 1], got %g", e.Network.DupeProb))
	}

	c := e.Consensus
	if c.Epsilon <= 0 {
		err = multierr.Append(err, fmt.Errorf("epsilon must be positive, got %g", c.Epsilon))
	}
	if c.InitialCIWidth <= 0 {
		err = multierr.Append(err, fmt.Errorf("initial_ci_width must be positive, got %g", c.InitialCIWidth))
	}
	if c.NoiseStdDev < 0 {
		err = multierr.Append(err, fmt.Errorf("noise_std_dev must be non-negative, got %g", c.NoiseStdDev))
	}
	if c.Epsilon < c.NoiseStdDev {
		err = multierr.Append(err, fmt.Errorf("epsilon (%g) below noise_std_dev (%g): agreement unreachable even without attacks", c.Epsilon, c.NoiseStdDev))
	}
	if c.LambdaMin <= 0 || c.LambdaMin >= 1 {
		err = multierr.Append(err, fmt.Errorf("lambda_min must be in (0, 1), got %g", c.LambdaMin))
	}
	if c.LambdaMax <= 0 || c.LambdaMax >= 1 {
		err = multierr.Append(err, fmt.Errorf("lambda_max must be in (0, 1), got %g", c.LambdaMax))
	}
	if c.LambdaMin >= c.LambdaMax {
		err = multierr.Append(err, fmt.Errorf("lambda_min (%g) must be below lambda_max (%g)", c.LambdaMin, c.LambdaMax))
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		err = multierr.Append(err, fmt.Errorf("iou_threshold must be in [0, 1], got %g", c.IoUThreshold))
	}
	if c.VoteThreshold <= 0 || c.VoteThreshold > 1 {
		err = multierr.Append(err, fmt.Errorf("consistency_vote_threshold must be in (0, 1], got %g", c.VoteThreshold))
	}
	if c.TrimMin < 0 {
		err = multierr.Append(err, fmt.Errorf("trim_min must be non-negative, got %d", c.TrimMin))
	}
	if c.TrimMaxFraction < 0 || c.TrimMaxFraction > 0.5 {
		err = multierr.Append(err, fmt.Errorf("trim_max_fraction must be in [0, 0.5], got %g", c.TrimMaxFraction))
	}
	if _, aerr := aggregate.ByName(c.Estimator); aerr != nil {
		err = multierr.Append(err, aerr)
	}
	if _, derr := detect.ByName(c.ChangeDetection); derr != nil {
		err = multierr.Append(err, derr)
	}
	if c.LivenessWindow < 1 {
		err = multierr.Append(err, fmt.Errorf("liveness_window must be at least 1, got %d", c.LivenessWindow))
	}

	a := e.Adversarial
	if a.ByzantineFraction < 0 || a.ByzantineFraction >= 0.5 {
		err = multierr.Append(err, fmt.Errorf("byzantine_fraction must be in [0, 0.5), got %g", a.ByzantineFraction))
	}
	if a.ByzantineFraction > 0 {
		if e.NumByzantine() < 1 {
			err = multierr.Append(err, fmt.Errorf("byzantine_fraction %g with %d nodes yields no attackers", a.ByzantineFraction, e.Network.NumNodes))
		}
		total := 0.0
		for name, weight := range a.AttackMix {
			if _, serr := attacks.ByName(name, 0, 0, attacks.DefaultParams()); serr != nil {
				err = multierr.Append(err, serr)
			}
			if weight < 0 {
				err = multierr.Append(err, fmt.Errorf("attack_mix[%s] must be non-negative, got %g", name, weight))
			}
			total += weight
		}
		if math.Abs(total-1.0) > 0.01 {
			err = multierr.Append(err, fmt.Errorf("attack_mix must sum to 1.0, got %g", total))
		}
	}

	if len(e.GroundTruth.Changes) > 0 {
		if _, gerr := sensors.NewPiecewise(e.GroundTruth.Changes); gerr != nil {
			err = multierr.Append(err, gerr)
		}
	}

	if e.MaxRounds < 1 {
		err = multierr.Append(err, fmt.Errorf("max_rounds must be positive, got %d", e.MaxRounds))
	}
	if len(e.Seeds) == 0 {
		err = multierr.Append(err, fmt.Errorf("at least one seed is required"))
	}
	return err
}
