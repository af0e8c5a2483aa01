package ir

// LoopInfo classifies blocks against the natural loops of one CFGView:
// which blocks are loop headers, which loops (by header) contain a
// given block, and each block's loop nesting depth. Ported in spirit
// from ssa/pass_cfg.go's subPassLoopDetection, extended to full natural
// loop membership because the spiller's loop-header live-in selection
// (§4.4) and divergence's μ/η "walk outward until the loop" (§4.1) both
// need loop bodies, not just header/back-edge detection.
type LoopInfo struct {
	Headers []bool             // by BlockID: true if this block is a loop header.
	Depth   []int              // by BlockID: loop nesting depth.
	Latches map[BlockID][]BlockID // by header BlockID: its back-edge predecessors.
	members []map[BlockID]bool // by header BlockID: blocks in that loop.
}

// BuildLoopInfo detects loop headers (a block dominates one of its own
// predecessors, i.e. there is a back edge into it) and computes the
// natural loop for each header: the header plus every block that can
// reach the corresponding latch without passing through the header.
func BuildLoopInfo(numBlocks int, view CFGView, dom *DomTree) *LoopInfo {
	headers := make([]bool, numBlocks)
	var latchesOf = make(map[BlockID][]BlockID)
	for b := BlockID(0); int(b) < numBlocks; b++ {
		for _, p := range view.Preds(b) {
			if dom.Dominates(b, p) {
				headers[b] = true
				latchesOf[b] = append(latchesOf[b], p)
			}
		}
	}

	members := make([]map[BlockID]bool, numBlocks)
	for h := BlockID(0); int(h) < numBlocks; h++ {
		if !headers[h] {
			continue
		}
		body := map[BlockID]bool{h: true}
		var stack []BlockID
		for _, latch := range latchesOf[h] {
			if !body[latch] {
				body[latch] = true
				stack = append(stack, latch)
			}
		}
		for len(stack) > 0 {
			n := len(stack) - 1
			b := stack[n]
			stack = stack[:n]
			for _, p := range view.Preds(b) {
				if !body[p] {
					body[p] = true
					stack = append(stack, p)
				}
			}
		}
		members[h] = body
	}

	depth := make([]int, numBlocks)
	for b := BlockID(0); int(b) < numBlocks; b++ {
		for h := BlockID(0); int(h) < numBlocks; h++ {
			if headers[h] && members[h][b] {
				depth[b]++
			}
		}
	}

	return &LoopInfo{Headers: headers, Depth: depth, Latches: latchesOf, members: members}
}

// Contains reports whether block b is inside the natural loop headed by h.
func (l *LoopInfo) Contains(h, b BlockID) bool {
	m := l.members[h]
	return m != nil && m[b]
}

// InnermostHeader returns the header of the innermost loop containing b,
// or BlockIDInvalid if b is not in any loop.
func (l *LoopInfo) InnermostHeader(b BlockID) BlockID {
	best := BlockIDInvalid
	bestDepth := -1
	for h := range l.members {
		hb := BlockID(h)
		if l.Contains(hb, b) && l.Depth[hb] > bestDepth {
			best = hb
			bestDepth = l.Depth[hb]
		}
	}
	return best
}
