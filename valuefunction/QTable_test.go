package valuefunction

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateKey(t *testing.T) {
	assert.Equal(t, "1,0,-2", StateKey([]float64{1.7, 0.2, -2.9}))
	assert.Equal(t, "", StateKey(nil))

	// Dimensions stay separated so that [1, 23] and [12, 3] differ
	assert.NotEqual(t, StateKey([]float64{1, 23}), StateKey([]float64{12, 3}))
}

func TestQTableZeroInit(t *testing.T) {
	q := NewQTable(3)

	value, err := q.Q([]float64{4, 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)
	assert.Equal(t, 1, q.Len())

	max, action, err := q.Max([]float64{9, 9})
	require.NoError(t, err)
	assert.Equal(t, 0.0, max)
	assert.Equal(t, 0, action, "ties should go to the lowest action")
	assert.Equal(t, 2, q.Len())
}

func TestQTableTrain(t *testing.T) {
	q := NewQTable(2)
	state := []float64{1, 0}

	require.NoError(t, q.Train(state, 1, 2.0, 0.5))
	require.NoError(t, q.Train([]float64{1.9, 0.4}, 1, 1.0, 0.5))

	value, err := q.Q(state, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, value, 1e-12)

	max, action, err := q.Max(state)
	require.NoError(t, err)
	assert.Equal(t, 1, action)
	assert.InDelta(t, 1.5, max, 1e-12)
}

func TestQTableTooManyActions(t *testing.T) {
	q := NewQTable(2)

	_, err := q.Q([]float64{0}, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyActions))

	err = q.Train([]float64{0}, 5, 1, 1)
	assert.True(t, errors.Is(err, ErrTooManyActions))
}

func TestQTableWeightsAreCopies(t *testing.T) {
	q := NewQTable(2)
	require.NoError(t, q.Train([]float64{3}, 0, 1, 1))

	weights, err := q.Weights()
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"0": 0, "1": 1}, weights[ActionsMapKey])
	assert.Equal(t, map[string]int{"3": 0}, weights[StatesMapKey])

	table := weights[TableKey].([][]float64)
	require.Len(t, table, 1)
	assert.Equal(t, []float64{1, 0}, table[0])

	table[0][0] = 100
	value, err := q.Q([]float64{3}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, value)
}

func TestQTableConcurrent(t *testing.T) {
	q := NewQTable(2)
	state := []float64{0}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = q.Train(state, 0, 1, 1)
				_, _, _ = q.Max(state)
			}
		}()
	}
	wg.Wait()

	value, err := q.Q(state, 0)
	require.NoError(t, err)
	assert.Equal(t, 800.0, value)
}

func TestNew(t *testing.T) {
	vf, err := New(QTableType, Config{ActionsN: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, vf.ActionsN())

	_, err = New("unknown", Config{ActionsN: 2})
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = New(QTableType, Config{ActionsN: 0})
	assert.Error(t, err)

	assert.Equal(t, []Type{QTableType, TileCodedType}, Types())
}

func BenchmarkQTableTrain(b *testing.B) {
	q := NewQTable(4)
	state := []float64{1, 2, 3, 4}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Train(state, i%4, 1.0, 0.1)
	}
}
