package tdform

import (
	"go.uber.org/atomic"

	"github.com/samuelfneumann/tdlearner/timestep"
	"github.com/samuelfneumann/tdlearner/valuefunction"
)

func init() {
	Register(SarsaAverageRewardType, func(vf valuefunction.ValueFunction,
		c Config) (TDForm, error) {
		return NewSarsaAverageReward(vf, c.Beta), nil
	})
}

// SarsaAverageReward implements the differential SARSA TD error for
// continuing tasks, which replaces discounting with an estimate ρ of
// the average reward:
//
//		δ = r - ρ + q(s', a') - q(s, a)
//		ρ ← ρ + β δ
type SarsaAverageReward struct {
	vf   valuefunction.ValueFunction
	beta float64

	// Read concurrently by stats
	rho *atomic.Float64
}

// NewSarsaAverageReward returns a new SarsaAverageReward TDForm with
// average reward step size beta and ρ = 0
func NewSarsaAverageReward(vf valuefunction.ValueFunction,
	beta float64) *SarsaAverageReward {
	return &SarsaAverageReward{
		vf:   vf,
		beta: beta,
		rho:  atomic.NewFloat64(0),
	}
}

// Delta returns the differential SARSA TD error of t and moves the
// average reward estimate toward it
func (s *SarsaAverageReward) Delta(t timestep.Transition) (float64, error) {
	next, err := s.vf.Q(t.NextState, t.NextAction)
	if err != nil {
		return 0, &Error{Op: "delta", Err: err}
	}
	current, err := s.vf.Q(t.State, t.Action)
	if err != nil {
		return 0, &Error{Op: "delta", Err: err}
	}

	delta := t.Reward - s.rho.Load() + next - current
	s.rho.Add(s.beta * delta)

	return delta, nil
}

// AverageReward returns the current average reward estimate ρ
func (s *SarsaAverageReward) AverageReward() float64 {
	return s.rho.Load()
}
