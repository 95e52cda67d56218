// Package tdform implements temporal difference update rules which turn
// a Transition into a scalar training delta
package tdform

import (
	"fmt"
	"sort"

	"github.com/samuelfneumann/tdlearner/timestep"
	"github.com/samuelfneumann/tdlearner/valuefunction"
)

// TDForm computes the temporal difference error of a Transition with
// respect to the ValueFunction the TDForm was constructed with.
//
// A TDForm is used by a single training goroutine. Delta may update
// internal estimates, so calling Delta twice on the same Transition is
// not idempotent.
type TDForm interface {
	Delta(t timestep.Transition) (float64, error)
}

// Type denotes a kind of TDForm
type Type string

const (
	QLearningType          Type = "q_learning"
	SarsaAverageRewardType Type = "sarsa_average_reward"
)

// Config holds the hyperparameters of any registered TDForm. Each Type
// only reads the fields it needs.
type Config struct {
	Gamma float64 // Discount factor for Q-learning
	Beta  float64 // Average reward step size for SARSA
}

// Constructor creates a TDForm over a ValueFunction
type Constructor func(valuefunction.ValueFunction, Config) (TDForm, error)

var registeredTypes = make(map[Type]Constructor)

// Register registers a TDForm Type with the Constructor used to create
// it
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

// New creates a new TDForm of Type t which computes deltas with respect
// to vf
func New(t Type, vf valuefunction.ValueFunction, c Config) (TDForm, error) {
	constructor, ok := registeredTypes[t]
	if !ok {
		return nil, &Error{
			Op:  "new",
			Err: fmt.Errorf("%w: %q", ErrUnsupported, t),
		}
	}
	if vf == nil {
		return nil, &Error{Op: "new", Err: fmt.Errorf("nil value function")}
	}
	return constructor(vf, c)
}
