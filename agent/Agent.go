// Package agent defines the interface of an online learner which
// selects actions and is trained from a stream of outcome reports, the
// hyperparameters shared by all learners, and a registry of learner
// Types.
package agent

import (
	"context"

	"github.com/samuelfneumann/tdlearner/timestep"
)

// Agent is an online learner. An Agent is queried for decisions through
// Act and trained through Train, concurrently and from any number of
// goroutines, while a single background consumer owned by the Agent
// performs all learning.
//
// The mutable state of an Agent (weights, pending entries, ε and
// counters) forms one generation. Reset replaces the whole generation
// at once while the Parameters survive.
type Agent interface {
	// Start starts the background training consumer. Start is
	// idempotent.
	Start() error

	// Stop stops the background training consumer and discards the
	// current generation. A stopped Agent may be started again.
	Stop()

	// Reset discards all learned state and starts a fresh generation
	// with the current Parameters
	Reset() error

	// Train submits an outcome report for training. Train blocks while
	// the pending buffer is full.
	Train(ctx context.Context, e timestep.TimeStep) error

	// Act selects an action in state
	Act(state []float64) (ActResult, error)

	// Parameters returns the current hyperparameters
	Parameters() Parameters

	// SetParameters merges raw into the current hyperparameters and
	// returns the result
	SetParameters(raw map[string]interface{}) (Parameters, error)

	// Stats returns the runtime counters of the current generation
	Stats() Stats

	// Weights returns a deep copy of the learned weights
	Weights() (map[string]interface{}, error)

	// Type returns the Type of the Agent
	Type() Type
}

// ActResult is a decision made by an Agent
type ActResult struct {
	Action int     `json:"action"`
	Eps    float64 `json:"eps"`
}

// Stats holds the runtime counters of an Agent
type Stats struct {
	Inferences       uint64  `json:"inferences"`
	TrainedItems     uint64  `json:"trained_items"`
	Episodes         uint64  `json:"episodes"`
	Epsilon          float64 `json:"epsilon"`
	PendingEntries   int     `json:"pending_entries"`
	EidMaxSeen       uint64  `json:"eid_max_seen"`
	EidLastTrained   uint64  `json:"eid_last_trained"`
	EvictedEntries   uint64  `json:"evicted_entries"`
	DuplicateEntries uint64  `json:"duplicate_entries"`

	// AverageReward is only reported by learners which estimate it
	AverageReward *float64 `json:"average_reward,omitempty"`
}
