package online

import (
	"context"

	"go.uber.org/atomic"

	"github.com/samuelfneumann/tdlearner/buffer/episode"
	"github.com/samuelfneumann/tdlearner/policy"
	"github.com/samuelfneumann/tdlearner/tdform"
	"github.com/samuelfneumann/tdlearner/valuefunction"
)

// generation is the mutable core of a Learner. A Reset replaces the
// whole generation; components are never shared between generations.
type generation struct {
	vf     valuefunction.ValueFunction
	td     tdform.TDForm
	buffer *episode.Buffer
	policy *policy.EGreedy

	inferences   *atomic.Uint64
	trainedItems *atomic.Uint64
	episodes     *atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// start starts the training consumer of the generation
func (g *generation) start(l *Learner) {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})

	go l.consume(ctx, g)
}

// stop cancels the training consumer, wakes blocked submitters and
// waits for the consumer to exit
func (g *generation) stop() {
	g.cancel()
	g.buffer.Close()
	<-g.done
}
