package regalloc

import "github.com/wavecc/shadercore/ir"

// request parameterizes one placement search: size dwords, aligned to
// stride, in the given bank.
type request struct {
	bank   ir.Bank
	size   int
	stride int
}

// copyLeg records one leg of a parallelcopy emitted to clear space for
// an incoming placement: move id's current value from -> to before the
// instruction that needs the freed room.
type copyLeg struct {
	id   ir.TempID
	rc   ir.RC
	from ir.PhysReg
	to   ir.PhysReg
}

// maxDisplaceDepth bounds get_reg's recursive eviction search. Real
// register files converge well inside this; a window that still can't
// be found within it is reported as exhausted rather than searched
// forever.
const maxDisplaceDepth = 4

// getReg implements §4.5's get_reg: find or make room for req within
// [0, bound) of its bank, returning the chosen register plus any
// parallelcopy legs needed to evict what was in the way.
func (a *allocator) getReg(f *file, req request, bound int) (ir.PhysReg, []copyLeg, bool) {
	if reg, ok := scanFree(f, req, bound); ok {
		return reg, nil, true
	}
	for k := 1; k <= req.size; k++ {
		if reg, legs, ok := a.tryDisplace(f, req, bound, k, maxDisplaceDepth); ok {
			return reg, legs, true
		}
	}
	return ir.PhysRegInvalid, nil, false
}

// scanFree is the no-move pass: the first stride-aligned, entirely-free
// window.
func scanFree(f *file, req request, bound int) (ir.PhysReg, bool) {
	for start := 0; start+req.size <= bound; start += req.stride {
		if f.windowFree(req.bank, start, req.size) {
			return ir.NewPhysReg(req.bank, start), true
		}
	}
	return ir.PhysRegInvalid, false
}

// tryDisplace looks for a window whose occupants number at most k, none
// of them as large as the incoming value (§4.5: "if any of them is >=
// size of the incoming value, give up on this window"), recursively
// relocating each displaced Temp elsewhere in the file.
func (a *allocator) tryDisplace(f *file, req request, bound, k, depth int) (ir.PhysReg, []copyLeg, bool) {
	if depth == 0 {
		return ir.PhysRegInvalid, nil, false
	}
	for start := 0; start+req.size <= bound; start += req.stride {
		if f.windowSplits(req.bank, start, req.size) {
			continue
		}
		occupants := f.occupantsIn(req.bank, start, req.size)
		if len(occupants) == 0 || len(occupants) > k {
			continue
		}
		tooBig := false
		for _, id := range occupants {
			if a.sizeOf(id) >= req.size {
				tooBig = true
				break
			}
		}
		if tooBig {
			continue
		}

		reg := ir.NewPhysReg(req.bank, start)
		f.occupy(reg, req.size, blocked)

		var legs []copyLeg
		ok := true
		for _, id := range occupants {
			p := f.occupant[id]
			f.release(id)
			newReg, newLegs, placedOK := a.tryPlaceDisplaced(f, req.bank, a.sizeOf(id), p.reg, bound, depth-1)
			if !placedOK {
				ok = false
				break
			}
			legs = append(legs, newLegs...)
			legs = append(legs, copyLeg{id: id, rc: a.rc[id], from: p.reg, to: newReg})
			f.occupy(newReg, a.sizeOf(id), id)
		}

		f.occupy(reg, req.size, ir.TempIDInvalid) // undo the block; caller commits the real occupant.
		if ok {
			return reg, legs, true
		}
		// Roll back: restore occupants to their original homes.
		for _, leg := range legs {
			f.release(leg.id)
		}
		for _, id := range occupants {
			p, wasKnown := a.lastPlacement[id]
			if wasKnown {
				f.occupy(p, a.sizeOf(id), id)
			}
		}
	}
	return ir.PhysRegInvalid, nil, false
}

// tryPlaceDisplaced finds a new home for a displaced occupant elsewhere
// in the file, recursing into get_reg's own displacement search if no
// free window remains.
func (a *allocator) tryPlaceDisplaced(f *file, bank ir.Bank, size int, avoid ir.PhysReg, bound, depth int) (ir.PhysReg, []copyLeg, bool) {
	req := request{bank: bank, size: size, stride: strideFor(bank, size)}
	if reg, ok := scanFree(f, req, bound); ok && reg != avoid {
		return reg, nil, true
	}
	if depth <= 0 {
		return ir.PhysRegInvalid, nil, false
	}
	return a.tryDisplace(f, req, bound, size, depth)
}

// strideFor returns the alignment §4.5 requires for a register class of
// the given size: 2-aligned at size 2, 4-aligned at size >= 4, otherwise
// unaligned.
func strideFor(bank ir.Bank, size int) int {
	switch {
	case size >= 4:
		return 4
	case size == 2:
		return 2
	default:
		return 1
	}
}
