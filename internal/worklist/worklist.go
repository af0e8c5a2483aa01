// Package worklist provides the block/value work-queues used by the
// fixed-point dataflow passes (divergence, liveness, next-use distance
// propagation). It wraps github.com/oleiade/lane's Stack the same way
// cloudwego/frugal's internal/atm/ssa.BasicBlockIter walks its CFG: push
// unseen work, pop until empty, track visitation in a side set.
package worklist

import "github.com/oleiade/lane"

// IntStack is a LIFO worklist of ints (block or value indices) with
// membership tracking so the same item is never queued twice while
// pending.
type IntStack struct {
	s        *lane.Stack
	queued   map[int]bool
}

// NewIntStack returns an empty IntStack.
func NewIntStack() *IntStack {
	return &IntStack{s: lane.NewStack(), queued: make(map[int]bool)}
}

// Push queues v if it is not already pending.
func (w *IntStack) Push(v int) {
	if w.queued[v] {
		return
	}
	w.queued[v] = true
	w.s.Push(v)
}

// Empty reports whether the worklist has no pending items.
func (w *IntStack) Empty() bool { return w.s.Empty() }

// Pop removes and returns the most recently pushed item.
func (w *IntStack) Pop() (int, bool) {
	v := w.s.Pop()
	if v == nil {
		return 0, false
	}
	i := v.(int)
	delete(w.queued, i)
	return i, true
}

// SeedAll pushes 0..n-1 in order, matching "seeded with every block".
func SeedAll(n int) *IntStack {
	w := NewIntStack()
	for i := 0; i < n; i++ {
		w.Push(i)
	}
	return w
}
