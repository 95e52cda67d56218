package agent

import (
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	for _, learner := range []Type{SarsaQTable, QLearningQTable} {
		assert.NoError(t, Defaults().Validate(learner), learner)
	}

	// Tile coding needs state bounds
	assert.Error(t, Defaults().Validate(SarsaTileCoded))
}

func TestMergeCoercesValues(t *testing.T) {
	p := Defaults()

	merged, unknown, err := p.Merge(map[string]interface{}{
		"alpha":                 "0.5",
		"actions_n":             3.0,
		"epsilon_decay_enabled": "false",
		"window_size":           7,
		"state_min":             []interface{}{0.0, "1"},
		"state_max":             "2,3",
		"colour":                "blue",
		"another":               1,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.5, merged.Alpha)
	assert.Equal(t, 3, merged.ActionsN)
	assert.False(t, merged.EpsilonDecayEnabled)
	assert.Equal(t, 7, merged.WindowSize)
	assert.Equal(t, []float64{0, 1}, merged.StateMin)
	assert.Equal(t, []float64{2, 3}, merged.StateMax)
	assert.Equal(t, []string{"another", "colour"}, unknown)

	// Unspecified keys keep their values and p is not modified
	assert.Equal(t, p.Gamma, merged.Gamma)
	assert.Equal(t, 0.01, p.Alpha)
}

func TestMergeRejectsMalformedValues(t *testing.T) {
	p := Defaults()

	tests := map[string]interface{}{
		"alpha":                 "fast",
		"actions_n":             2.5,
		"epsilon_decay_enabled": "maybe",
		"state_min":             map[string]int{},
		"seed":                  -1,
	}

	for key, value := range tests {
		merged, _, err := p.Merge(map[string]interface{}{key: value})
		require.Error(t, err, key)

		var configErr *ConfigError
		require.True(t, errors.As(err, &configErr), key)
		assert.Equal(t, key, configErr.Key)
		assert.True(t, IsConfigError(err))
		assert.Equal(t, p.Map(SarsaTileCoded), merged.Map(SarsaTileCoded))
	}
}

func TestValidate(t *testing.T) {
	p := Defaults()
	p.WindowSize = 1
	err := p.Validate(SarsaQTable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), WindowSizeKey)

	p = Defaults()
	p.BufferCapacity = 3
	assert.Error(t, p.Validate(SarsaQTable))

	p = Defaults()
	p.StateMin = []float64{0, 0}
	p.StateMax = []float64{1}
	assert.Error(t, p.Validate(SarsaTileCoded))

	p.StateMax = []float64{1, 1}
	assert.NoError(t, p.Validate(SarsaTileCoded))
}

func TestMapExposesBetaOrGamma(t *testing.T) {
	p := Defaults()

	sarsa := p.Map(SarsaQTable)
	assert.Contains(t, sarsa, BetaKey)
	assert.NotContains(t, sarsa, GammaKey)
	assert.NotContains(t, sarsa, TilingsKey)

	q := p.Map(QLearningQTable)
	assert.Contains(t, q, GammaKey)
	assert.NotContains(t, q, BetaKey)

	tiled := p.Map(SarsaTileCoded)
	assert.Contains(t, tiled, TilingsKey)
	assert.Contains(t, tiled, StateMinKey)
}

func TestChanged(t *testing.T) {
	p := Defaults()
	other, _, err := p.Merge(map[string]interface{}{
		"alpha":     0.2,
		"actions_n": 4,
	})
	require.NoError(t, err)

	changed := other.Changed(p)
	assert.Equal(t, []string{ActionsNKey, AlphaKey}, changed)
	assert.True(t, IsStructural(ActionsNKey))
	assert.False(t, IsStructural(AlphaKey))
	assert.Empty(t, p.Changed(p))
}

func TestNewUnsupportedLearner(t *testing.T) {
	_, err := New("DoubleDQN", Defaults(), logr.Discard())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedLearner))
}
