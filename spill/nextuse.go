package spill

import (
	"github.com/wavecc/shadercore/internal/worklist"
	"github.com/wavecc/shadercore/ir"
)

// loopPenalty is added to a next-use distance propagated across a loop
// back edge, per §4.4: loop-carried values should compete well against
// purely-local ones when the spiller picks what to evict.
const loopPenalty = 0xFFFF

// Distances maps a Temp id to the number of instructions between some
// reference point and its next use.
type Distances map[ir.TempID]int

// NextUse holds, for every block, the next-use distance of every Temp
// live at that block's entry.
type NextUse struct {
	EntryDist map[ir.BlockID]Distances
}

// At returns the next-use distance of id at the entry of block, or a
// sentinel "not live" value if id is not tracked there.
func (n *NextUse) At(block ir.BlockID, id ir.TempID) (int, bool) {
	d, ok := n.EntryDist[block][id]
	return d, ok
}

// computeNextUse runs the reverse worklist propagation of §4.4: within a
// block, scan instructions backward, resetting a Temp's distance to zero
// at a use and incrementing every tracked distance once per instruction
// stepped over; across a block boundary, take the minimum over
// successors and add loopPenalty when the edge is a loop back edge.
func computeNextUse(p *ir.Program, loops *ir.LoopInfo) *NextUse {
	n := len(p.Blocks)
	entry := make(map[ir.BlockID]Distances, n)
	for i := 0; i < n; i++ {
		entry[ir.BlockID(i)] = Distances{}
	}

	wl := worklist.SeedAll(n)
	for !wl.Empty() {
		bi, _ := wl.Pop()
		block := p.Blocks[bi]
		bid := ir.BlockID(bi)

		dist := Distances{}
		for _, s := range block.LinearSuccs {
			penalty := 0
			if loops.Headers[s] && loops.Contains(s, bid) {
				penalty = loopPenalty
			}
			for id, d := range entry[s] {
				nd := d + 1 + penalty
				if cur, ok := dist[id]; !ok || nd < cur {
					dist[id] = nd
				}
			}
		}

		for i := len(block.Instrs) - 1; i >= 0; i-- {
			instr := block.Instrs[i]
			for _, d := range instr.Defs {
				delete(dist, d.Temp.ID)
			}
			if instr.IsPhi() {
				continue
			}
			for id := range dist {
				dist[id]++
			}
			for _, op := range instr.Operands {
				if t, ok := op.IsTemp(); ok {
					dist[t.ID] = 0
				}
			}
		}

		if !distancesEqual(dist, entry[bid]) {
			entry[bid] = dist
			for _, pr := range block.LinearPreds {
				wl.Push(int(pr))
			}
		}
	}
	return &NextUse{EntryDist: entry}
}

func distancesEqual(a, b Distances) bool {
	if len(a) != len(b) {
		return false
	}
	for id, da := range a {
		if db, ok := b[id]; !ok || db != da {
			return false
		}
	}
	return true
}
