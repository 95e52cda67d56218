// Package timestep implements the outcome reports a learner trains on
package timestep

import (
	"fmt"
	"math"
)

// TimeStep packages together a single outcome report: the state in
// which a decision was taken, the action that was chosen and the
// reward observed for it. Eid is the episode identifier assigned by
// the producer and defines the temporal order of TimeSteps. Reports
// may arrive in any order; only the Eid places them in time.
//
// A TimeStep should be treated as immutable once constructed.
type TimeStep struct {
	Eid    uint64
	State  []float64
	Action int
	Reward float64
}

// New returns a new TimeStep. The state slice is copied so that the
// caller may reuse its backing array.
func New(eid uint64, state []float64, action int, reward float64) TimeStep {
	s := make([]float64, len(state))
	copy(s, state)

	return TimeStep{Eid: eid, State: s, Action: action, Reward: reward}
}

// Valid returns an error describing why the TimeStep cannot be used
// for training, or nil if it can be used
func (t TimeStep) Valid() error {
	if len(t.State) == 0 {
		return fmt.Errorf("empty state")
	}
	for i, s := range t.State {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("state dimension %d is not finite (%v)", i, s)
		}
	}
	if math.IsNaN(t.Reward) || math.IsInf(t.Reward, 0) {
		return fmt.Errorf("reward is not finite (%v)", t.Reward)
	}
	if t.Action < 0 {
		return fmt.Errorf("action cannot be negative (%d)", t.Action)
	}
	return nil
}

func (t TimeStep) String() string {
	str := "TimeStep | Eid: %d  |  State: %v  |  Action: %d  |  Reward: %.2f"

	return fmt.Sprintf(str, t.Eid, t.State, t.Action, t.Reward)
}
