// Package episode implements a reordering buffer which reconstructs
// windows of temporally contiguous TimeSteps from an unordered, possibly
// lossy stream of outcome reports.
package episode

import (
	"context"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set"
	lock "github.com/viney-shih/go-lock"

	"github.com/samuelfneumann/tdlearner/timestep"
)

// Stats holds the diagnostic counters of a Buffer
type Stats struct {
	Pending        int    // Number of buffered entries
	EidMaxSeen     uint64 // Largest eid ever submitted
	EidLastTrained uint64 // Last eid of the last extracted window
	Evicted        uint64 // Entries dropped by resynchronization
	Duplicates     uint64 // Rejected duplicate submissions
	Missing        int    // Eids currently tracked as ahead of a gap
}

// Buffer is an ordered, capacity-bounded collection of TimeSteps keyed
// by their eid. Any number of goroutines may Submit concurrently; a
// single consumer waits on Ready and calls Extract to receive windows of
// consecutive eids.
//
// Capacity is enforced by a channel holding one token per buffered
// entry: a Submit must place a token before inserting and every entry
// leaving the buffer, through extraction or eviction, takes one back.
// The sorted entries, the eid index and the missing registry are
// guarded by a single latch.
type Buffer struct {
	slots  chan struct{}
	ready  chan struct{}
	closed chan struct{}

	latch    lock.Mutex // Guards the following
	isClosed bool
	entries  []timestep.TimeStep
	eids     mapset.Set

	// missing counts, per eid, the extraction attempts which found that
	// eid ahead of a gap
	missing map[uint64]int

	eidMaxSeen     uint64
	eidLastTrained uint64
	evicted        uint64
	duplicates     uint64
}

// New returns a new, empty Buffer
func New(c Config) (*Buffer, error) {
	if err := c.Validate(); err != nil {
		return nil, &BufferError{Op: "new", Err: err}
	}

	return &Buffer{
		slots:   make(chan struct{}, c.Capacity),
		ready:   make(chan struct{}, c.Capacity),
		closed:  make(chan struct{}),
		latch:   lock.NewCASMutex(),
		entries: make([]timestep.TimeStep, 0, c.Capacity),
		eids:    mapset.NewThreadUnsafeSet(),
		missing: make(map[uint64]int),
	}, nil
}

// Submit inserts e into the buffer in eid order. If the buffer is full,
// Submit blocks until an entry leaves the buffer, ctx is done or the
// buffer is closed.
//
// An entry whose eid is already buffered is rejected with an error
// satisfying IsDuplicate and leaves the buffer unchanged.
func (b *Buffer) Submit(ctx context.Context, e timestep.TimeStep) error {
	select {
	case <-b.closed:
		return &BufferError{Op: "submit", Err: ErrClosed}
	default:
	}

	select {
	case b.slots <- struct{}{}:
	case <-b.closed:
		return &BufferError{Op: "submit", Err: ErrClosed}
	case <-ctx.Done():
		return &BufferError{Op: "submit", Err: ctx.Err()}
	}

	if !b.latch.TryLockWithContext(ctx) {
		b.release(1)
		return &BufferError{Op: "submit", Err: ctx.Err()}
	}

	if b.isClosed {
		b.latch.Unlock()
		b.release(1)
		return &BufferError{Op: "submit", Err: ErrClosed}
	}

	if b.eids.Contains(e.Eid) {
		b.duplicates++
		b.latch.Unlock()
		b.release(1)
		return &BufferError{
			Op:  "submit",
			Err: fmt.Errorf("%w: %d", ErrDuplicate, e.Eid),
		}
	}

	b.insert(e)
	b.latch.Unlock()

	// Wake the consumer; it always re-checks trainability itself
	select {
	case b.ready <- struct{}{}:
	default:
	}

	return nil
}

// insert places e at its sorted position. The caller must hold the
// latch.
func (b *Buffer) insert(e timestep.TimeStep) {
	i := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].Eid > e.Eid
	})

	b.entries = append(b.entries, timestep.TimeStep{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = e

	b.eids.Add(e.Eid)
	if e.Eid > b.eidMaxSeen {
		b.eidMaxSeen = e.Eid
	}
}

// release returns n capacity tokens, unblocking up to n submitters
func (b *Buffer) release(n int) {
	for i := 0; i < n; i++ {
		<-b.slots
	}
}

// Extract returns the windowSize buffered entries with consecutive eids
// starting at the lowest buffered eid, removing them from the buffer.
// If no such window exists, Extract returns false.
//
// When the window is interrupted by a gap, the entry found in place of
// the missing eid is charged one attempt. Once it has been charged
// maxAttempts times, the gap is treated as permanent: the entries before
// the gap are evicted without being returned and the scan restarts from
// the new lowest eid.
//
// Extract must only be called by a single consumer.
func (b *Buffer) Extract(windowSize, maxAttempts int) ([]timestep.TimeStep, bool) {
	if windowSize < 1 {
		return nil, false
	}

	b.latch.Lock()
	defer b.latch.Unlock()

	for len(b.entries) >= windowSize {
		gap := b.gap(windowSize)
		if gap < 0 {
			return b.pop(windowSize), true
		}

		observed := b.entries[gap].Eid
		b.missing[observed]++
		if b.missing[observed] < maxAttempts {
			return nil, false
		}

		delete(b.missing, observed)
		b.evict(gap)
	}

	return nil, false
}

// gap returns the first position in the leading window whose eid does
// not follow its predecessor, or -1 if the window is contiguous. The
// caller must hold the latch.
func (b *Buffer) gap(windowSize int) int {
	head := b.entries[0].Eid
	for p := 1; p < windowSize; p++ {
		if b.entries[p].Eid != head+uint64(p) {
			return p
		}
	}
	return -1
}

// remove removes the leading n entries and returns them. The caller
// must hold the latch.
func (b *Buffer) remove(n int) []timestep.TimeStep {
	removed := make([]timestep.TimeStep, n)
	copy(removed, b.entries[:n])

	remaining := copy(b.entries, b.entries[n:])
	for i := remaining; i < len(b.entries); i++ {
		b.entries[i] = timestep.TimeStep{}
	}
	b.entries = b.entries[:remaining]

	for _, e := range removed {
		b.eids.Remove(e.Eid)
		delete(b.missing, e.Eid)
	}
	b.release(n)

	return removed
}

// pop removes and returns a window of n entries. The caller must hold
// the latch.
func (b *Buffer) pop(n int) []timestep.TimeStep {
	window := b.remove(n)
	if last := window[n-1].Eid; last > b.eidLastTrained {
		b.eidLastTrained = last
	}
	return window
}

// evict drops the leading n entries. The caller must hold the latch.
func (b *Buffer) evict(n int) {
	b.remove(n)
	b.evicted += uint64(n)
}

// Ready returns a channel which receives a value after every successful
// submission. A receive only means a window may be ready.
func (b *Buffer) Ready() <-chan struct{} {
	return b.ready
}

// Close closes the buffer. Blocked and future submissions fail with an
// error satisfying IsClosed. Buffered entries are discarded with the
// Buffer. Close is idempotent.
func (b *Buffer) Close() {
	b.latch.Lock()
	defer b.latch.Unlock()

	if b.isClosed {
		return
	}
	b.isClosed = true
	close(b.closed)
}

// Len returns the number of buffered entries
func (b *Buffer) Len() int {
	b.latch.Lock()
	defer b.latch.Unlock()

	return len(b.entries)
}

// Cap returns the maximum number of buffered entries
func (b *Buffer) Cap() int {
	return cap(b.slots)
}

// Stats returns a snapshot of the buffer's counters
func (b *Buffer) Stats() Stats {
	b.latch.Lock()
	defer b.latch.Unlock()

	return Stats{
		Pending:        len(b.entries),
		EidMaxSeen:     b.eidMaxSeen,
		EidLastTrained: b.eidLastTrained,
		Evicted:        b.evicted,
		Duplicates:     b.duplicates,
		Missing:        len(b.missing),
	}
}

// String returns a string representation of the buffer
func (b *Buffer) String() string {
	s := b.Stats()
	return fmt.Sprintf("Episode Buffer | Pending: %d/%d  |  Max Seen: %d  "+
		"|  Last Trained: %d", s.Pending, b.Cap(), s.EidMaxSeen,
		s.EidLastTrained)
}
