package timestep

import "fmt"

// Transition is a SARSA tuple (S, A, R, S', A') built from two
// temporally consecutive TimeSteps. Reward is the reward observed for
// taking Action in State.
type Transition struct {
	State      []float64
	Action     int
	Reward     float64
	NextState  []float64
	NextAction int
}

// NewTransition constructs a Transition from a TimeStep and the
// TimeStep that immediately follows it
func NewTransition(step, nextStep TimeStep) Transition {
	return Transition{
		State:      step.State,
		Action:     step.Action,
		Reward:     step.Reward,
		NextState:  nextStep.State,
		NextAction: nextStep.Action,
	}
}

// Transitions returns the len(window)-1 Transitions between
// consecutive TimeSteps of a window, in window order
func Transitions(window []TimeStep) []Transition {
	if len(window) < 2 {
		return nil
	}

	transitions := make([]Transition, 0, len(window)-1)
	for i := 0; i < len(window)-1; i++ {
		transitions = append(transitions, NewTransition(window[i], window[i+1]))
	}
	return transitions
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | S: %v  A: %d  R: %.2f  S': %v  A': %d",
		t.State, t.Action, t.Reward, t.NextState, t.NextAction)
}
