package queue

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// Executor applies mutations for the queue.
type Executor interface {
	// WaitForFrameSlot blocks until the GPU no longer reads slot's state.
	WaitForFrameSlot(slot int) error

	// Apply performs m against slot only. Unknown mutation types must be a no-op.
	Apply(m Mutation, slot int) error
}

// Entry is a queued mutation and the number of ticks it still has to run.
type Entry struct {
	Mutation  Mutation
	Remaining int
}

// Queue is an ordered, growable sequence of deferred mutations. It is owned by one scene and is
// not safe for concurrent use.
type Queue struct {
	entries []Entry
}

// NewQueue creates an empty queue with capacity 1.
func NewQueue() *Queue {
	return &Queue{entries: make([]Entry, 0, 1)}
}

// Len returns the number of queued entries, dead ones included.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Cap returns the allocated capacity.
func (q *Queue) Cap() int {
	return cap(q.entries)
}

// Entries returns a copy of the queued entries in order.
func (q *Queue) Entries() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Push appends a mutation that will run on each of the next repeats drains.
//
// Parameters:
//   - m: the mutation
//   - repeats: number of drains that execute it, normally the number of frame slots
func (q *Queue) Push(m Mutation, repeats int) {
	if m == nil {
		return
	}
	if len(q.entries) == cap(q.entries) {
		q.resize(common.GrowCap(len(q.entries), cap(q.entries)))
	}
	q.entries = append(q.entries, Entry{Mutation: m, Remaining: max(repeats, 0)})
}

// Drain runs one tick of the queue against slot. Entries with nothing remaining are removed;
// every other entry is decremented, then executed after waiting on slot's fence. Called exactly
// once per render tick, before the tick's draw submission.
//
// Parameters:
//   - slot: the current frame slot
//   - x: applies the mutations
//
// Returns:
//   - error: a fence wait failure or a fatal backend failure; other execution errors are logged
func (q *Queue) Drain(slot int, x Executor) error {
	for i := 0; i < len(q.entries); {
		e := &q.entries[i]
		if e.Remaining == 0 {
			q.removeAt(i)
			continue
		}
		e.Remaining--

		if err := x.WaitForFrameSlot(slot); err != nil {
			return fmt.Errorf("failed to wait for frame slot %d: %w", slot, err)
		}
		if err := x.Apply(e.Mutation, slot); err != nil {
			if common.IsFatal(err) {
				return err
			}
			common.Logger().Warn("deferred mutation failed",
				"mutation", e.Mutation.Kind(), "slot", slot, "err", err)
		}
		i++
	}
	return nil
}

// Cancel zeroes the remaining count of every entry matching fn; the next Drain removes them.
//
// Returns:
//   - int: the number of entries cancelled
func (q *Queue) Cancel(fn func(m Mutation) bool) int {
	n := 0
	for i := range q.entries {
		if q.entries[i].Remaining > 0 && fn(q.entries[i].Mutation) {
			q.entries[i].Remaining = 0
			n++
		}
	}
	return n
}

// Clear drops every entry and resets capacity to 1.
func (q *Queue) Clear() {
	q.entries = make([]Entry, 0, 1)
}

func (q *Queue) removeAt(i int) {
	last := len(q.entries) - 1
	copy(q.entries[i:], q.entries[i+1:])
	q.entries[last] = Entry{}
	q.entries = q.entries[:last]

	if want := common.ShrinkCap(len(q.entries), cap(q.entries)); want < cap(q.entries) {
		q.resize(want)
	}
}

func (q *Queue) resize(capacity int) {
	entries := make([]Entry, len(q.entries), capacity)
	copy(entries, q.entries)
	q.entries = entries
}
