package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zrlcode-55/masters-thesis-zachary-larkin/aggregate"
)

func TestDefaultValidates(t *testing.T) {
	exp := Default()
	require.NoError(t, exp.Validate())
	assert.Equal(t, 10, exp.NumByzantine())
	assert.Equal(t, 5000, exp.MaxRounds)
	assert.Len(t, exp.Seeds, 20)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	exp := Default()
	exp.Consensus.LambdaMin = 0.3
	exp.Consensus.LambdaMax = 0.2
	exp.Consensus.Estimator = "arithmetic_mean"
	exp.Consensus.ChangeDetection = "psychic"
	exp.Adversarial.AttackMix = map[string]float64{"MIMIC": 0.5, "SPIKE": 0.2}

	err := exp.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "lambda_min")
	assert.Contains(t, msg, "arithmetic_mean")
	assert.Contains(t, msg, "psychic")
	assert.Contains(t, msg, "sum to 1.0")
}

func TestValidateRejectsHalfByzantine(t *testing.T) {
	exp := Default()
	exp.Adversarial.ByzantineFraction = 0.5
	assert.Error(t, exp.Validate())
}

func TestValidateEpsilonAgainstNoise(t *testing.T) {
	exp := Default()
	exp.Consensus.Epsilon = 0.3 // below sigma=0.5
	err := exp.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "noise_std_dev")
}

func TestValidateIgnoresAttackMixWhenNoByzantine(t *testing.T) {
	exp := Default()
	exp.Adversarial.ByzantineFraction = 0
	exp.Adversarial.AttackMix = nil
	assert.NoError(t, exp.Validate())
}

func TestLoadAppliesOverridesOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	doc := `
name: override-test
network:
  num_nodes: 50
consensus:
  estimator: trimmed_mean
max_rounds: 200
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	exp, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override-test", exp.Name)
	assert.Equal(t, 50, exp.Network.NumNodes)
	assert.Equal(t, aggregate.NameTrimmedMean, exp.Consensus.Estimator)
	assert.Equal(t, 200, exp.MaxRounds)
	// Untouched sections keep defaults.
	assert.Equal(t, 9, exp.Network.SpreadingFactor)
	assert.Equal(t, 0.20, exp.Consensus.IoUThreshold)
}

func TestLoadRejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	doc := "consensus:\n  lambda_min: 0.9\n  lambda_max: 0.1\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	exp := Security20B()
	require.NoError(t, exp.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, exp, loaded)
}

func TestScenarioLibrary(t *testing.T) {
	for _, name := range ScenarioNames() {
		exp, err := Scenario(name)
		require.NoError(t, err, name)
		assert.NoError(t, exp.Validate(), name)
	}

	_, err := Scenario("atlantis")
	assert.Error(t, err)

	assert.Equal(t, 200, Scaling200N().Network.NumNodes)
	assert.Equal(t, 0.20, Security20B().Adversarial.ByzantineFraction)
	assert.Equal(t, 7, SpeedSF7().Network.SpreadingFactor)
	assert.Zero(t, Ideal0B().NumByzantine())
}
