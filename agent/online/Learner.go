// Package online implements an agent.Agent which learns online from a
// concurrent, unordered stream of outcome reports.
//
// A Learner is built from a ValueFunction, a TDForm, an episode Buffer
// and an EGreedy policy, together called a generation. Producers submit
// reports to the Buffer through Train while a single consumer goroutine
// extracts windows of consecutive reports and applies the TD updates of
// each window to the ValueFunction in eid order. Act reads the
// ValueFunction through the policy and never waits on training.
package online

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/atomic"

	"github.com/samuelfneumann/tdlearner/agent"
	"github.com/samuelfneumann/tdlearner/buffer/episode"
	"github.com/samuelfneumann/tdlearner/metrics"
	"github.com/samuelfneumann/tdlearner/policy"
	"github.com/samuelfneumann/tdlearner/tdform"
	"github.com/samuelfneumann/tdlearner/timestep"
	"github.com/samuelfneumann/tdlearner/utils/floatutils"
	"github.com/samuelfneumann/tdlearner/utils/logging"
	"github.com/samuelfneumann/tdlearner/valuefunction"
)

func init() {
	for _, t := range []agent.Type{
		agent.SarsaQTable,
		agent.QLearningQTable,
		agent.SarsaTileCoded,
	} {
		agent.Register(t, func(t agent.Type, p agent.Parameters,
			logger logr.Logger) (agent.Agent, error) {
			return New(t, p, logger)
		})
	}
}

// fullBufferBackoff is the pause between extraction attempts while the
// buffer is full and its leading window has a gap
const fullBufferBackoff = time.Millisecond

// averageRewarder is a TDForm which estimates the average reward
type averageRewarder interface {
	AverageReward() float64
}

// Learner implements an online TD learner
type Learner struct {
	t      agent.Type
	logger logr.Logger

	// Parameters which apply to a running generation immediately.
	// Read by the consumer without taking the lock.
	alpha       *atomic.Float64
	windowSize  *atomic.Int64
	maxAttempts *atomic.Int64

	lock   sync.RWMutex // Guards the following
	params agent.Parameters
	gen    *generation
}

// New creates a new, stopped Learner of Type t
func New(t agent.Type, p agent.Parameters, logger logr.Logger) (*Learner, error) {
	if _, ok := t.Components(); !ok {
		return nil, fmt.Errorf("online: new: %w: %q",
			agent.ErrUnsupportedLearner, t)
	}
	if err := p.Validate(t); err != nil {
		return nil, fmt.Errorf("online: new: %w", err)
	}

	l := &Learner{
		t:           t,
		logger:      logger.WithName("learner").WithValues("type", t),
		alpha:       atomic.NewFloat64(p.Alpha),
		windowSize:  atomic.NewInt64(int64(p.WindowSize)),
		maxAttempts: atomic.NewInt64(int64(p.EntryMissingMaxAttempts)),
		params:      p,
	}

	// Construct a generation up front so that configuration errors are
	// reported by New rather than by Start
	if _, err := l.newGeneration(p); err != nil {
		return nil, fmt.Errorf("online: new: %w", err)
	}
	return l, nil
}

// Start starts the background training consumer on a fresh generation.
// Start is idempotent.
func (l *Learner) Start() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.gen != nil {
		return nil
	}

	gen, err := l.newGeneration(l.params)
	if err != nil {
		return fmt.Errorf("online: start: %w", err)
	}
	l.gen = gen
	gen.start(l)

	l.logger.Info("Learner started", "parameters", l.params.Map(l.t))
	return nil
}

// Stop stops the background training consumer, waits for it to exit
// and discards the current generation
func (l *Learner) Stop() {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.gen == nil {
		return
	}
	l.gen.stop()
	l.gen = nil

	l.logger.Info("Learner stopped")
}

// Reset replaces the running generation with a fresh one built from the
// current Parameters. Pending entries, learned weights, the average
// reward estimate, ε and all counters are discarded.
func (l *Learner) Reset() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.gen == nil {
		return fmt.Errorf("online: reset: %w", agent.ErrNotRunning)
	}

	gen, err := l.newGeneration(l.params)
	if err != nil {
		return fmt.Errorf("online: reset: %w", err)
	}

	l.gen.stop()
	l.gen = gen
	gen.start(l)

	metrics.RecordReset(string(l.t))
	l.logger.Info("Learner reset", "parameters", l.params.Map(l.t))
	return nil
}

// current returns the running generation
func (l *Learner) current() (*generation, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	if l.gen == nil {
		return nil, agent.ErrNotRunning
	}
	return l.gen, nil
}

// Train submits e for training. Train blocks while the buffer of the
// running generation is full. An entry submitted while the Learner is
// reset is resubmitted to the new generation.
func (l *Learner) Train(ctx context.Context, e timestep.TimeStep) error {
	if err := e.Valid(); err != nil {
		return fmt.Errorf("online: train: %w: %v", agent.ErrInvalidEntry, err)
	}

	for {
		gen, err := l.current()
		if err != nil {
			return fmt.Errorf("online: train: %w", err)
		}

		if actionsN := gen.vf.ActionsN(); e.Action >= actionsN {
			return fmt.Errorf("online: train: %w: action %d not in [0, %d)",
				agent.ErrInvalidEntry, e.Action, actionsN)
		}

		err = gen.buffer.Submit(ctx, e)
		switch {
		case err == nil:
			metrics.RecordSubmitted(string(l.t))
			l.logger.V(logging.TRACE).Info("Entry submitted", "entry", e)
			return nil

		case episode.IsClosed(err):
			// The generation was replaced or stopped while submitting
			continue

		case episode.IsDuplicate(err):
			metrics.RecordDuplicate(string(l.t))
			return fmt.Errorf("online: train: %w", err)

		default:
			return fmt.Errorf("online: train: %w", err)
		}
	}
}

// Act selects an action in state using the ε-greedy policy of the
// running generation
func (l *Learner) Act(state []float64) (agent.ActResult, error) {
	if len(state) == 0 || !floatutils.Finite(state...) {
		return agent.ActResult{}, fmt.Errorf("online: act: %w: state %v",
			agent.ErrInvalidEntry, state)
	}

	gen, err := l.current()
	if err != nil {
		return agent.ActResult{}, fmt.Errorf("online: act: %w", err)
	}

	action, eps, err := gen.policy.SelectAction(gen.vf, state)
	if err != nil {
		if errors.Is(err, valuefunction.ErrStateDims) {
			err = fmt.Errorf("%w: %v", agent.ErrInvalidEntry, err)
		}
		return agent.ActResult{}, fmt.Errorf("online: act: %w", err)
	}

	gen.inferences.Inc()
	metrics.RecordInference(string(l.t), eps)
	l.logger.V(logging.TRACE).Info("Action selected", "state", state,
		"action", action, "eps", eps)

	return agent.ActResult{Action: action, Eps: eps}, nil
}

// Parameters returns a copy of the current Parameters
func (l *Learner) Parameters() agent.Parameters {
	l.lock.RLock()
	defer l.lock.RUnlock()

	p, _, _ := l.params.Merge(nil)
	return p
}

// SetParameters merges raw into the current Parameters. The ε schedule,
// alpha, window_size and entry_missing_max_attempts apply to the running
// generation immediately; all other parameters apply at the next Reset.
//
// If raw holds a malformed or invalid value, the Parameters are left
// unchanged and a *agent.ConfigError is returned.
func (l *Learner) SetParameters(raw map[string]interface{}) (agent.Parameters, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	merged, unknown, err := l.params.Merge(raw)
	if err != nil {
		return l.params, fmt.Errorf("online: setParameters: %w", err)
	}
	if err := merged.Validate(l.t); err != nil {
		return l.params, fmt.Errorf("online: setParameters: %w", err)
	}
	if l.gen != nil && merged.WindowSize > l.gen.buffer.Cap() {
		return l.params, fmt.Errorf("online: setParameters: %w",
			&agent.ConfigError{
				Key: agent.WindowSizeKey,
				Err: fmt.Errorf("exceeds the running buffer capacity %d",
					l.gen.buffer.Cap()),
			})
	}

	if len(unknown) > 0 {
		l.logger.Info("Ignoring unknown parameters", "keys", unknown)
	}

	var onReset []string
	for _, key := range merged.Changed(l.params) {
		if agent.IsStructural(key) {
			onReset = append(onReset, key)
		}
	}

	l.params = merged
	l.alpha.Store(merged.Alpha)
	l.windowSize.Store(int64(merged.WindowSize))
	l.maxAttempts.Store(int64(merged.EntryMissingMaxAttempts))
	if l.gen != nil {
		l.gen.policy.SetSchedule(schedule(merged))
	}

	l.logger.Info("Parameters updated", "parameters", merged.Map(l.t),
		"appliedOnReset", onReset)
	return merged, nil
}

// Stats returns the counters of the running generation. A stopped
// Learner reports zero counters.
func (l *Learner) Stats() agent.Stats {
	l.lock.RLock()
	gen := l.gen
	epsilon := l.params.EpsilonStart
	l.lock.RUnlock()

	if gen == nil {
		return agent.Stats{Epsilon: epsilon}
	}

	b := gen.buffer.Stats()
	stats := agent.Stats{
		Inferences:       gen.inferences.Load(),
		TrainedItems:     gen.trainedItems.Load(),
		Episodes:         gen.episodes.Load(),
		Epsilon:          gen.policy.Epsilon(),
		PendingEntries:   b.Pending,
		EidMaxSeen:       b.EidMaxSeen,
		EidLastTrained:   b.EidLastTrained,
		EvictedEntries:   b.Evicted,
		DuplicateEntries: b.Duplicates,
	}
	if td, ok := gen.td.(averageRewarder); ok {
		rho := td.AverageReward()
		stats.AverageReward = &rho
	}
	return stats
}

// Weights returns a deep copy of the weights of the running generation
func (l *Learner) Weights() (map[string]interface{}, error) {
	gen, err := l.current()
	if err != nil {
		return nil, fmt.Errorf("online: weights: %w", err)
	}
	return gen.vf.Weights()
}

// Type returns the Type of the Learner
func (l *Learner) Type() agent.Type {
	return l.t
}

// String returns a string representation of the Learner
func (l *Learner) String() string {
	gen, err := l.current()
	if err != nil {
		return fmt.Sprintf("%v | stopped", l.t)
	}
	return fmt.Sprintf("%v | %v | %v | %v", l.t, gen.vf, gen.policy,
		gen.buffer)
}

// newGeneration builds the components of a fresh generation
func (l *Learner) newGeneration(p agent.Parameters) (*generation, error) {
	c, _ := l.t.Components()

	vf, err := valuefunction.New(c.ValueFunction, valuefunction.Config{
		ActionsN:    p.ActionsN,
		Tilings:     p.Tilings,
		TilesPerDim: p.TilesPerDim,
		StateMin:    p.StateMin,
		StateMax:    p.StateMax,
		Seed:        p.Seed,
	})
	if err != nil {
		return nil, err
	}

	td, err := tdform.New(c.TDForm, vf, tdform.Config{
		Gamma: p.Gamma,
		Beta:  p.Beta,
	})
	if err != nil {
		return nil, err
	}

	buffer, err := episode.New(episode.Config{Capacity: p.BufferCapacity})
	if err != nil {
		return nil, err
	}

	return &generation{
		vf:           vf,
		td:           td,
		buffer:       buffer,
		policy:       policy.NewEGreedy(p.EpsilonStart, schedule(p), p.ActionsN, p.Seed),
		inferences:   atomic.NewUint64(0),
		trainedItems: atomic.NewUint64(0),
		episodes:     atomic.NewUint64(0),
	}, nil
}

// consume runs the training loop of gen until ctx is cancelled. Every
// submission wakes the loop, which then trains every window the buffer
// can produce.
func (l *Learner) consume(ctx context.Context, gen *generation) {
	defer close(gen.done)

	logger := l.logger.WithName("consumer")
	logger.V(logging.DEBUG).Info("Training consumer started")

	backoff := time.NewTimer(fullBufferBackoff)
	defer backoff.Stop()
	if !backoff.Stop() {
		<-backoff.C
	}

	var evicted uint64
	for {
		select {
		case <-ctx.Done():
			logger.V(logging.DEBUG).Info("Training consumer stopped")
			return
		case <-gen.buffer.Ready():
		}

		for ctx.Err() == nil {
			window, ok := gen.buffer.Extract(int(l.windowSize.Load()),
				int(l.maxAttempts.Load()))
			if ok {
				l.trainWindow(logger, gen, window)
				continue
			}

			// A full buffer receives no submissions to wake the
			// consumer, so keep charging the gap until it is evicted
			if gen.buffer.Len() < gen.buffer.Cap() {
				break
			}
			backoff.Reset(fullBufferBackoff)
			select {
			case <-ctx.Done():
			case <-backoff.C:
			}
		}

		stats := gen.buffer.Stats()
		if stats.Evicted > evicted {
			logger.V(logging.VERBOSE).Info("Evicted entries behind a missing eid",
				"evicted", stats.Evicted-evicted, "head", stats.EidLastTrained)
			metrics.RecordEvicted(string(l.t), stats.Evicted-evicted)
			evicted = stats.Evicted
		}
		metrics.RecordPending(string(l.t), stats.Pending)
	}
}

// trainWindow applies the TD update of every consecutive pair of the
// window, in eid order. Failed updates are logged and skipped.
func (l *Learner) trainWindow(logger logr.Logger, gen *generation,
	window []timestep.TimeStep) {
	start := time.Now()
	alpha := l.alpha.Load()

	for _, t := range timestep.Transitions(window) {
		delta, err := gen.td.Delta(t)
		if err != nil {
			logger.Error(err, "Could not compute TD error", "transition", t)
			continue
		}
		if err := gen.vf.Train(t.State, t.Action, delta, alpha); err != nil {
			logger.Error(err, "Could not train value function",
				"transition", t)
			continue
		}
		logger.V(logging.TRACE).Info("Trained", "transition", t,
			"delta", delta)
	}

	gen.trainedItems.Add(uint64(len(window)))
	gen.episodes.Inc()

	metrics.RecordWindow(string(l.t), len(window), time.Since(start).Seconds())
	logger.V(logging.DEBUG).Info("Trained window",
		"first", window[0].Eid, "last", window[len(window)-1].Eid)
}

// schedule returns the ε decay schedule of p
func schedule(p agent.Parameters) policy.Schedule {
	return policy.Schedule{
		Min:          p.EpsilonMin,
		Decay:        p.EpsilonDecay,
		DecayEnabled: p.EpsilonDecayEnabled,
	}
}
