package spill

import "github.com/wavecc/shadercore/ir"

// slotsPerLinearVGPR is the number of dwords addressable within one
// linear-vgpr register before a second one must be opened; no spilled
// value may straddle this boundary (property 6).
const slotsPerLinearVGPR = 64

// colorAndRewrite assigns every spill id a (linear-vgpr, slot) pair by
// greedy graph coloring over the interference structure built during
// selection/coupling/body processing, rewrites every OpSpill/OpReload in
// the program with its assigned slot, and brackets the program with
// OpStartLinearVGPR/OpEndLinearVGPR.
//
// Bracket placement is conservative: one pair spanning the whole
// program rather than precise per-top-level-block liveness of the
// linear-vgpr storage itself; see DESIGN.md.
func (s *spiller) colorAndRewrite() *Result {
	roots := s.sortedRoots()
	slotOf := map[ir.SpillID]int{}
	bankOf := map[ir.SpillID]int{}
	used := []map[int]bool{{}}

	for _, r := range roots {
		size := int(s.rc[s.idTemp[r]].Size)
		placed := false
		for bank := range used {
			for slot := 0; slot+size <= slotsPerLinearVGPR; slot++ {
				if s.slotFree(used[bank], slot, size, r, slotOf, bankOf, bank) {
					s.occupy(used[bank], slot, size)
					slotOf[r] = slot
					bankOf[r] = bank
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
		if !placed {
			used = append(used, map[int]bool{})
			bank := len(used) - 1
			s.occupy(used[bank], 0, size)
			slotOf[r] = 0
			bankOf[r] = bank
		}
	}

	count := 0
	for _, b := range s.p.Blocks {
		for _, instr := range b.Instrs {
			if instr.SpillID == ir.SpillIDInvalid {
				continue
			}
			switch instr.Opcode {
			case ir.OpSpill, ir.OpReload:
			default:
				continue
			}
			count++
			r := s.find(instr.SpillID)
			instr.SlotIndex = slotOf[r]
			instr.SlotBase = ir.NewPhysReg(ir.BankLinearVGPR, bankOf[r])
		}
	}

	s.insertBrackets()

	return &Result{SpillIDCount: count, NumLinearVGPRsUsed: len(used)}
}

func (s *spiller) slotFree(bank map[int]bool, slot, size int, r ir.SpillID, slotOf map[ir.SpillID]int, bankOf map[ir.SpillID]int, bankIdx int) bool {
	for i := slot; i < slot+size; i++ {
		if bank[i] {
			return false
		}
	}
	for other, otherSlot := range slotOf {
		if bankOf[other] != bankIdx || !s.interferes[s.find(r)][other] {
			continue
		}
		otherSize := int(s.rc[s.idTemp[other]].Size)
		if rangesOverlap(slot, size, otherSlot, otherSize) {
			return false
		}
	}
	return true
}

func rangesOverlap(a, aLen, b, bLen int) bool {
	return a < b+bLen && b < a+aLen
}

func (s *spiller) occupy(bank map[int]bool, slot, size int) {
	for i := slot; i < slot+size; i++ {
		bank[i] = true
	}
}

// sortedRoots returns every distinct affinity-union root among the
// spill ids the spiller touched, in ascending Temp id order so coloring
// is deterministic.
func (s *spiller) sortedRoots() []ir.SpillID {
	seen := map[ir.SpillID]bool{}
	var out []ir.SpillID
	ids := make([]ir.TempID, 0, len(s.spillIDOf))
	for id := range s.spillIDOf {
		ids = append(ids, id)
	}
	sortTempIDs(ids)
	for _, id := range ids {
		r := s.find(s.spillIDOf[id])
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func sortTempIDs(ids []ir.TempID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// insertBrackets wraps the whole program in OpStartLinearVGPR /
// OpEndLinearVGPR once any spilling occurred, skipping entirely
// otherwise.
func (s *spiller) insertBrackets() {
	if len(s.spillIDOf) == 0 || len(s.p.Blocks) == 0 {
		return
	}
	entry := s.p.Blocks[0]
	entry.InsertBefore(len(entry.Phis()), &ir.Instruction{Opcode: ir.OpStartLinearVGPR})

	exit := s.p.Blocks[len(s.p.Blocks)-1]
	insertBeforeTerminator(exit, &ir.Instruction{Opcode: ir.OpEndLinearVGPR})
}
