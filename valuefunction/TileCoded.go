package valuefunction

import (
	"fmt"

	lock "github.com/viney-shih/go-lock"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/tdlearner/utils/matutils"
	"github.com/samuelfneumann/tdlearner/utils/matutils/tilecoder"
)

// WeightsKey is the key of the weight matrix returned by
// TileCoded.Weights
const WeightsKey string = "weights"

func init() {
	Register(TileCodedType, func(c Config) (ValueFunction, error) {
		return NewTileCoded(c)
	})
}

// TileCoded implements a ValueFunction using linear function
// approximation over tile-coded states. Each action owns one row of
// weights of the weight matrix, and the value of an action in a state
// is the dot product between the action's weights and the tile-coded
// state:
//
//		q(s, a) = w_a ⋅ x(s)
//
// Unlike the QTable, the memory used by a TileCoded ValueFunction is
// fixed at construction.
type TileCoded struct {
	latch   lock.Mutex
	coder   *tilecoder.TileCoder
	weights *mat.Dense // rows = actions, cols = features
}

// NewTileCoded creates a new TileCoded ValueFunction with zero weights.
// The StateMin, StateMax, Tilings, TilesPerDim and Seed fields of the
// Config determine the tile coding of states.
func NewTileCoded(c Config) (*TileCoded, error) {
	coder, err := tilecoder.New(c.StateMin, c.StateMax, c.Tilings,
		c.TilesPerDim, c.Seed)
	if err != nil {
		return nil, &Error{Op: "newTileCoded", Err: err}
	}

	weights := mat.NewDense(c.ActionsN, coder.VecLength(), nil)

	return &TileCoded{
		latch:   lock.NewCASMutex(),
		coder:   coder,
		weights: weights,
	}, nil
}

// features returns the tile-coded representation of state
func (t *TileCoded) features(state []float64) (*mat.VecDense, error) {
	x, err := t.coder.Encode(state)
	if err != nil {
		return nil, &Error{
			Op:  "features",
			Err: fmt.Errorf("%w: %v", ErrStateDims, err),
		}
	}
	return x, nil
}

// Check returns an error if state does not have the dimension of the
// configured state bounds
func (t *TileCoded) Check(state []float64) error {
	if len(state) != t.coder.Dims() {
		return &Error{
			Op: "check",
			Err: fmt.Errorf("%w: state has %d dimensions, want %d",
				ErrStateDims, len(state), t.coder.Dims()),
		}
	}
	return nil
}

func (t *TileCoded) checkAction(action int) error {
	if action < 0 || action >= t.ActionsN() {
		return &Error{
			Op: "checkAction",
			Err: fmt.Errorf("%w: action %d with %d actions configured",
				ErrTooManyActions, action, t.ActionsN()),
		}
	}
	return nil
}

// Q returns the estimated value of taking action in state
func (t *TileCoded) Q(state []float64, action int) (float64, error) {
	if err := t.checkAction(action); err != nil {
		return 0, err
	}
	x, err := t.features(state)
	if err != nil {
		return 0, err
	}

	t.latch.Lock()
	defer t.latch.Unlock()

	return mat.Dot(t.weights.RowView(action), x), nil
}

// Max returns the maximum action value in state and the action which
// achieves it
func (t *TileCoded) Max(state []float64) (float64, int, error) {
	x, err := t.features(state)
	if err != nil {
		return 0, 0, err
	}

	t.latch.Lock()
	defer t.latch.Unlock()

	actionValues := mat.NewVecDense(t.ActionsN(), nil)
	actionValues.MulVec(t.weights, x)

	action := matutils.MaxVec(actionValues)
	return actionValues.AtVec(action), action, nil
}

// Train performs the semi-gradient update w_a <- w_a + alpha * delta * x(s)
func (t *TileCoded) Train(state []float64, action int, delta, alpha float64) error {
	if err := t.checkAction(action); err != nil {
		return err
	}
	x, err := t.features(state)
	if err != nil {
		return err
	}

	t.latch.Lock()
	defer t.latch.Unlock()

	row := t.weights.RowView(action)
	newWeights := mat.NewVecDense(row.Len(), nil)
	newWeights.AddScaledVec(row, alpha*delta, x)
	t.weights.SetRow(action, newWeights.RawVector().Data)

	return nil
}

// Weights returns a copy of the weight matrix as one slice per action
func (t *TileCoded) Weights() (map[string]interface{}, error) {
	t.latch.Lock()
	defer t.latch.Unlock()

	return map[string]interface{}{WeightsKey: matutils.Rows(t.weights)}, nil
}

// ActionsN returns the number of actions values are estimated for
func (t *TileCoded) ActionsN() int {
	r, _ := t.weights.Dims()
	return r
}

// String returns a string representation of the TileCoded
// ValueFunction
func (t *TileCoded) String() string {
	return fmt.Sprintf("TileCoded | Actions: %d  |  %v", t.ActionsN(), t.coder)
}
