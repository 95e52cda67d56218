package valuefunction

import (
	"fmt"
	"strconv"
	"strings"

	deepcopy "github.com/barkimedes/go-deepcopy"
	lock "github.com/viney-shih/go-lock"
	"gonum.org/v1/gonum/floats"
)

// Keys of the map returned by QTable.Weights
const (
	ActionsMapKey = "actions_map"
	StatesMapKey  = "states_map"
	TableKey      = "table"
)

func init() {
	Register(QTableType, func(c Config) (ValueFunction, error) {
		return NewQTable(c.ActionsN), nil
	})
}

// QTable implements a tabular ValueFunction. States are discretized by
// truncating each dimension to an integer; each distinct discretized
// state owns one row of actionsN values, initialized to zero the first
// time the state is seen.
//
// The table is never pruned: every distinct state seen over the life of
// the QTable keeps its row.
type QTable struct {
	latch    lock.Mutex
	actionsN int

	// actions maps action indices to table columns in the order they
	// were first seen
	actions map[int]int

	// states maps state keys to table rows
	states map[string]int
	table  [][]float64
}

// NewQTable creates a new, empty QTable for actionsN actions
func NewQTable(actionsN int) *QTable {
	q := &QTable{
		latch:    lock.NewCASMutex(),
		actionsN: actionsN,
		actions:  make(map[int]int, actionsN),
		states:   make(map[string]int),
	}

	// Actions 0, 1, ..., actionsN-1 map onto columns in order
	for a := 0; a < actionsN; a++ {
		q.column(a)
	}
	return q
}

// StateKey returns the canonical key of a state: each dimension is
// truncated toward zero and the integers are joined with commas
func StateKey(state []float64) string {
	var b strings.Builder
	for i, s := range state {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(int64(s), 10))
	}
	return b.String()
}

// row returns the row of state, adding a zero row if the state has not
// been seen. The caller must hold the latch.
func (q *QTable) row(state []float64) int {
	key := StateKey(state)
	if r, ok := q.states[key]; ok {
		return r
	}

	q.table = append(q.table, make([]float64, q.actionsN))
	q.states[key] = len(q.table) - 1
	return len(q.table) - 1
}

// column returns the column of action, mapping the action to the next
// free column if it has not been seen. The caller must hold the latch.
func (q *QTable) column(action int) (int, error) {
	if c, ok := q.actions[action]; ok {
		return c, nil
	}
	if len(q.actions) == q.actionsN {
		return 0, &Error{
			Op:  "column",
			Err: fmt.Errorf("%w: action %d with %d actions configured", ErrTooManyActions, action, q.actionsN),
		}
	}

	q.actions[action] = len(q.actions)
	return q.actions[action], nil
}

// Q returns the estimated value of taking action in state
func (q *QTable) Q(state []float64, action int) (float64, error) {
	q.latch.Lock()
	defer q.latch.Unlock()

	c, err := q.column(action)
	if err != nil {
		return 0, err
	}
	return q.table[q.row(state)][c], nil
}

// Max returns the maximum value in the row of state and the action
// achieving it. Ties are won by the lowest action index.
func (q *QTable) Max(state []float64) (float64, int, error) {
	q.latch.Lock()
	defer q.latch.Unlock()

	values := q.table[q.row(state)]
	action := floats.MaxIdx(values)
	return values[action], action, nil
}

// Train performs the update q(s, a) <- q(s, a) + alpha * delta
func (q *QTable) Train(state []float64, action int, delta, alpha float64) error {
	q.latch.Lock()
	defer q.latch.Unlock()

	c, err := q.column(action)
	if err != nil {
		return err
	}
	q.table[q.row(state)][c] += alpha * delta
	return nil
}

// Weights returns a deep copy of the action map, state map and table
func (q *QTable) Weights() (map[string]interface{}, error) {
	q.latch.Lock()
	defer q.latch.Unlock()

	actions := make(map[string]int, len(q.actions))
	for a, c := range q.actions {
		actions[strconv.Itoa(a)] = c
	}

	states, err := deepcopy.Anything(q.states)
	if err != nil {
		return nil, &Error{Op: "weights", Err: err}
	}
	table, err := deepcopy.Anything(q.table)
	if err != nil {
		return nil, &Error{Op: "weights", Err: err}
	}

	return map[string]interface{}{
		ActionsMapKey: actions,
		StatesMapKey:  states,
		TableKey:      table,
	}, nil
}

// Check returns an error if state is empty. States of any other
// dimension are accepted.
func (q *QTable) Check(state []float64) error {
	if len(state) == 0 {
		return &Error{
			Op:  "check",
			Err: fmt.Errorf("%w: empty state", ErrStateDims),
		}
	}
	return nil
}

// ActionsN returns the number of actions in the table
func (q *QTable) ActionsN() int {
	return q.actionsN
}

// Len returns the number of states in the table
func (q *QTable) Len() int {
	q.latch.Lock()
	defer q.latch.Unlock()

	return len(q.table)
}

// String returns a string representation of the QTable
func (q *QTable) String() string {
	return fmt.Sprintf("QTable | Actions: %d  |  States: %d", q.actionsN, q.Len())
}
