package tdform

import (
	"github.com/samuelfneumann/tdlearner/timestep"
	"github.com/samuelfneumann/tdlearner/valuefunction"
)

func init() {
	Register(QLearningType, func(vf valuefunction.ValueFunction,
		c Config) (TDForm, error) {
		return NewQLearning(vf, c.Gamma), nil
	})
}

// QLearning implements the off-policy Q-learning TD error:
//
//		δ = r + γ max_a' q(s', a') - q(s, a)
type QLearning struct {
	vf    valuefunction.ValueFunction
	gamma float64
}

// NewQLearning returns a new QLearning TDForm with discount factor gamma
func NewQLearning(vf valuefunction.ValueFunction, gamma float64) *QLearning {
	return &QLearning{vf: vf, gamma: gamma}
}

// Delta returns the Q-learning TD error of t
func (q *QLearning) Delta(t timestep.Transition) (float64, error) {
	next, _, err := q.vf.Max(t.NextState)
	if err != nil {
		return 0, &Error{Op: "delta", Err: err}
	}
	current, err := q.vf.Q(t.State, t.Action)
	if err != nil {
		return 0, &Error{Op: "delta", Err: err}
	}

	return t.Reward + q.gamma*next - current, nil
}

// Gamma returns the discount factor
func (q *QLearning) Gamma() float64 {
	return q.gamma
}
