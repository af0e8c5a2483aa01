package ir

// CFGView abstracts over "logical" or "linear" predecessor/successor
// edges, so dominance and loop detection can run against either graph
// without duplicating the algorithm (see Design Notes §9: model the two
// CFGs as two fields, not two block types).
type CFGView struct {
	Preds func(BlockID) []BlockID
	Succs func(BlockID) []BlockID
}

// LogicalView returns a CFGView over the program's logical CFG.
func LogicalView(p *Program) CFGView {
	return CFGView{
		Preds: func(b BlockID) []BlockID { return p.Block(b).LogicalPreds },
		Succs: func(b BlockID) []BlockID { return p.Block(b).LogicalSuccs },
	}
}

// LinearView returns a CFGView over the program's linear CFG.
func LinearView(p *Program) CFGView {
	return CFGView{
		Preds: func(b BlockID) []BlockID { return p.Block(b).LinearPreds },
		Succs: func(b BlockID) []BlockID { return p.Block(b).LinearSuccs },
	}
}

// DomTree is an immediate-dominator table over one CFGView, computed by
// the iterative algorithm of Cooper, Harvey & Kennedy, "A Simple, Fast
// Dominance Algorithm" -- ported from the teacher's
// ssa/pass_cfg.go:calculateDominators.
type DomTree struct {
	idom     []BlockID
	rpoIndex []int
	view     CFGView
}

// BuildDomTree computes the dominator tree of numBlocks blocks reachable
// from entry, using view's Preds/Succs.
func BuildDomTree(numBlocks int, entry BlockID, view CFGView) *DomTree {
	rpo := reversePostorder(numBlocks, entry, view.Succs)
	rpoIndex := make([]int, numBlocks)
	for i := range rpoIndex {
		rpoIndex[i] = -1
	}
	for i, b := range rpo {
		rpoIndex[b] = i
	}

	idom := make([]BlockID, numBlocks)
	for i := range idom {
		idom[i] = BlockIDInvalid
	}
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var u BlockID = BlockIDInvalid
			for _, p := range view.Preds(b) {
				if idom[p] == BlockIDInvalid {
					continue
				}
				if u == BlockIDInvalid {
					u = p
					continue
				}
				u = intersect(idom, rpoIndex, u, p)
			}
			if idom[b] != u {
				idom[b] = u
				changed = true
			}
		}
	}
	return &DomTree{idom: idom, rpoIndex: rpoIndex, view: view}
}

func intersect(idom []BlockID, rpoIndex []int, a, b BlockID) BlockID {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder computes the reverse postorder of blocks reachable
// from entry, ported from ssa/pass_cfg.go's explore-stack traversal:
// push seen blocks back onto the stack after queuing their unseen
// successors, so a block is only appended to the postorder once all of
// its successors have been.
func reversePostorder(numBlocks int, entry BlockID, succs func(BlockID) []BlockID) []BlockID {
	const unseen, seenState, doneState = 0, 1, 2
	state := make([]int, numBlocks)
	var postorder []BlockID

	stack := []BlockID{entry}
	state[entry] = seenState
	for len(stack) > 0 {
		tail := len(stack) - 1
		b := stack[tail]
		stack = stack[:tail]
		switch state[b] {
		case seenState:
			stack = append(stack, b)
			for _, s := range succs(b) {
				if state[s] == unseen {
					state[s] = seenState
					stack = append(stack, s)
				}
			}
			state[b] = doneState
		case doneState:
			postorder = append(postorder, b)
		}
	}

	out := make([]BlockID, len(postorder))
	for i, b := range postorder {
		out[len(postorder)-1-i] = b
	}
	return out
}

// IDom returns the immediate dominator of b.
func (d *DomTree) IDom(b BlockID) BlockID { return d.idom[b] }

// Dominates reports whether a dominates b (a == b counts as dominating).
func (d *DomTree) Dominates(a, b BlockID) bool {
	for {
		if a == b {
			return true
		}
		if b == d.idom[b] {
			return a == b
		}
		b = d.idom[b]
	}
}
