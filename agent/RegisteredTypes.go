package agent

import (
	"fmt"
	"sort"

	"github.com/go-logr/logr"

	"github.com/samuelfneumann/tdlearner/tdform"
	"github.com/samuelfneumann/tdlearner/valuefunction"
)

// Type represents a specific kind of learner, defined by the
// ValueFunction it learns and the TDForm it learns with
type Type string

const (
	SarsaQTable     Type = "SarsaQTable"
	QLearningQTable Type = "QLearningQTable"
	SarsaTileCoded  Type = "SarsaTileCoded"

	// DefaultType is used when no learner Type is named
	DefaultType Type = SarsaQTable
)

// Components are the strategies a learner Type is built from
type Components struct {
	ValueFunction valuefunction.Type
	TDForm        tdform.Type
}

var components = map[Type]Components{
	SarsaQTable: {
		ValueFunction: valuefunction.QTableType,
		TDForm:        tdform.SarsaAverageRewardType,
	},
	QLearningQTable: {
		ValueFunction: valuefunction.QTableType,
		TDForm:        tdform.QLearningType,
	},
	SarsaTileCoded: {
		ValueFunction: valuefunction.TileCodedType,
		TDForm:        tdform.SarsaAverageRewardType,
	},
}

// Components returns the strategies the Type is built from
func (t Type) Components() (Components, bool) {
	c, ok := components[t]
	return c, ok
}

// Constructor creates an Agent of some Type
type Constructor func(t Type, p Parameters, logger logr.Logger) (Agent, error)

// Registered types with the package. Once a Type has been registered
// with this map, Agents of that Type can be created with New.
//
// No Types are registered with this package upon initialization. Each
// package implementing an Agent registers its own Types to avoid
// circular imports.
var registeredTypes = make(map[Type]Constructor)

// Register registers an Agent's Type with the Constructor used to
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

// New creates a new Agent of the Type with the given name. An empty
// name selects DefaultType. The Agent is not started.
func New(name string, p Parameters, logger logr.Logger) (Agent, error) {
	t := Type(name)
	if name == "" {
		t = DefaultType
	}

	constructor, ok := registeredTypes[t]
	if !ok {
		return nil, fmt.Errorf("agent: new: %w: %q (registered: %v)",
			ErrUnsupportedLearner, name, Types())
	}
	if err := p.Validate(t); err != nil {
		return nil, fmt.Errorf("agent: new: %w", err)
	}

	return constructor(t, p, logger)
}
