// Package valuefunction implements stores that map (state, action)
// pairs to scalar value estimates
package valuefunction

import (
	"fmt"
	"sort"
)

// ValueFunction estimates the value of taking an action in a state.
//
// ValueFunctions are shared between the policy, which reads them to
// select greedy actions, and the training loop, which updates them.
// Implementations must therefore be safe for concurrent use.
type ValueFunction interface {
	// Q returns the estimated value of taking action in state
	Q(state []float64, action int) (float64, error)

	// Max returns the maximum estimated value over all actions in
	// state together with the action achieving it. Ties are broken in
	// favour of the lowest action index.
	Max(state []float64) (float64, int, error)

	// Train moves the estimate of (state, action) in the direction
	// of delta, scaled by the step size alpha
	Train(state []float64, action int, delta, alpha float64) error

	// Weights returns a deep copy of the learned weights for
	// diagnostics
	Weights() (map[string]interface{}, error)

	// ActionsN returns the number of actions the ValueFunction
	// estimates values for
	ActionsN() int

	// Check returns an error satisfying errors.Is(err, ErrStateDims)
	// if state cannot be evaluated by the ValueFunction
	Check(state []float64) error
}

// Type denotes a kind of ValueFunction
type Type string

const (
	QTableType    Type = "qtable"
	TileCodedType Type = "tilecoded"
)

// Config holds everything needed to construct any registered
// ValueFunction. Each Type only reads the fields it needs.
type Config struct {
	ActionsN int

	// Tile coding
	Tilings     int
	TilesPerDim int
	StateMin    []float64
	StateMax    []float64
	Seed        uint64
}

// Constructor creates a ValueFunction from a Config
type Constructor func(Config) (ValueFunction, error)

// Registered ValueFunction constructors. Each ValueFunction registers
// itself with the package upon initialization.
var registeredTypes = make(map[Type]Constructor)

// Register registers a ValueFunction Type with the Constructor used to
// create it
func Register(t Type, c Constructor) {
	registeredTypes[t] = c
}

// Types returns the registered Types in lexicographic order
func Types() []Type {
	types := make([]Type, 0, len(registeredTypes))
	for t := range registeredTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// New creates a new ValueFunction of Type t
func New(t Type, c Config) (ValueFunction, error) {
	constructor, ok := registeredTypes[t]
	if !ok {
		return nil, &Error{
			Op:  "new",
			Err: fmt.Errorf("%w: %q", ErrUnsupported, t),
		}
	}
	if c.ActionsN < 1 {
		return nil, &Error{
			Op:  "new",
			Err: fmt.Errorf("actions_n must be >= 1 (have %d)", c.ActionsN),
		}
	}

	return constructor(c)
}
