// Package policy implements action selection over a ValueFunction
package policy

import (
	"fmt"
	"math"

	lock "github.com/viney-shih/go-lock"
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/tdlearner/valuefunction"
)

// Schedule determines how ε decays after each decision
type Schedule struct {
	Min          float64 // ε never decays below Min
	Decay        float64 // Multiplicative decay applied after each decision
	DecayEnabled bool
}

// decay returns the value of ε following a decision made with epsilon
func (s Schedule) decay(epsilon float64) float64 {
	if s.DecayEnabled && epsilon > s.Min {
		return math.Max(epsilon*s.Decay, s.Min)
	}
	return epsilon
}

// EGreedy implements an ε-greedy policy with geometric decay of ε.
// With probability ε a uniformly random action is selected, otherwise
// the greedy action of the ValueFunction is selected. After every
// decision ε ← max(ε * decay, min) while decay is enabled.
//
// The random draw, the ε used for the decision and the decay all happen
// under one latch so that concurrent decisions never lose a decay step.
type EGreedy struct {
	latch    lock.Mutex // Guards the following
	epsilon  float64
	schedule Schedule
	rng      *rand.Rand

	actionsN int
}

// NewEGreedy returns a new EGreedy policy over actionsN actions with
// initial exploration probability start
func NewEGreedy(start float64, s Schedule, actionsN int,
	seed uint64) *EGreedy {
	return &EGreedy{
		latch:    lock.NewCASMutex(),
		epsilon:  start,
		schedule: s,
		rng:      rand.New(rand.NewSource(seed)),
		actionsN: actionsN,
	}
}

// SelectAction selects an action in state and returns it together with
// the ε used to select it. A state rejected by vf leaves ε unchanged,
// whether or not the decision would have explored.
func (p *EGreedy) SelectAction(vf valuefunction.ValueFunction,
	state []float64) (int, float64, error) {
	if err := vf.Check(state); err != nil {
		return 0, p.Epsilon(), fmt.Errorf("selectAction: %w", err)
	}

	p.latch.Lock()
	defer p.latch.Unlock()

	epsilon := p.epsilon
	var action int
	if p.rng.Float64() < epsilon {
		action = p.rng.Intn(p.actionsN)
	} else {
		var err error
		if _, action, err = vf.Max(state); err != nil {
			return 0, epsilon, fmt.Errorf("selectAction: %w", err)
		}
	}

	p.epsilon = p.schedule.decay(epsilon)
	return action, epsilon, nil
}

// Epsilon returns the current exploration probability
func (p *EGreedy) Epsilon() float64 {
	p.latch.Lock()
	defer p.latch.Unlock()

	return p.epsilon
}

// SetSchedule replaces the decay schedule. The current ε is kept.
func (p *EGreedy) SetSchedule(s Schedule) {
	p.latch.Lock()
	defer p.latch.Unlock()

	p.schedule = s
}

// String returns a string representation of the policy
func (p *EGreedy) String() string {
	p.latch.Lock()
	defer p.latch.Unlock()

	return fmt.Sprintf("EGreedy | ε: %.4f  |  Min: %.4f  |  Decay: %.4f "+
		"(enabled: %v)", p.epsilon, p.schedule.Min, p.schedule.Decay,
		p.schedule.DecayEnabled)
}
