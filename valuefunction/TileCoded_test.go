package valuefunction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tileCodedConfig() Config {
	return Config{
		ActionsN:    3,
		Tilings:     4,
		TilesPerDim: 5,
		StateMin:    []float64{0, 0},
		StateMax:    []float64{1, 1},
		Seed:        1,
	}
}

func TestTileCodedTrain(t *testing.T) {
	vf, err := NewTileCoded(tileCodedConfig())
	require.NoError(t, err)
	state := []float64{0.3, 0.7}

	value, err := vf.Q(state, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)

	// Each of the 4 active features moves by alpha * delta
	require.NoError(t, vf.Train(state, 2, 1.0, 0.25))
	value, err = vf.Q(state, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, value, 1e-12)

	max, action, err := vf.Max(state)
	require.NoError(t, err)
	assert.Equal(t, 2, action)
	assert.InDelta(t, 1.0, max, 1e-12)

	other, err := vf.Q(state, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, other)
}

func TestTileCodedErrors(t *testing.T) {
	vf, err := NewTileCoded(tileCodedConfig())
	require.NoError(t, err)

	_, err = vf.Q([]float64{0.5}, 0)
	assert.True(t, errors.Is(err, ErrStateDims))

	err = vf.Train([]float64{0.5, 0.5}, 3, 1, 1)
	assert.True(t, errors.Is(err, ErrTooManyActions))

	bad := tileCodedConfig()
	bad.StateMax = []float64{1}
	_, err = New(TileCodedType, bad)
	assert.Error(t, err)
}

func TestTileCodedWeights(t *testing.T) {
	vf, err := NewTileCoded(tileCodedConfig())
	require.NoError(t, err)
	require.NoError(t, vf.Train([]float64{0.1, 0.1}, 1, 1, 1))

	weights, err := vf.Weights()
	require.NoError(t, err)

	rows := weights[WeightsKey].([][]float64)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 4*5*5)

	sum := 0.0
	for _, w := range rows[1] {
		sum += w
	}
	assert.InDelta(t, 4.0, sum, 1e-12)
}

func TestCheckStateDims(t *testing.T) {
	vf, err := NewTileCoded(tileCodedConfig())
	require.NoError(t, err)

	assert.NoError(t, vf.Check([]float64{0.5, 0.5}))
	assert.True(t, errors.Is(vf.Check([]float64{0.5}), ErrStateDims))
	assert.True(t, errors.Is(vf.Check([]float64{0.5, 0.5, 0.5}), ErrStateDims))

	q := NewQTable(2)
	assert.NoError(t, q.Check([]float64{1, 2, 3}))
	assert.True(t, errors.Is(q.Check(nil), ErrStateDims))
}
