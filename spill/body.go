package spill

import "github.com/wavecc/shadercore/ir"

// processBody walks b's non-phi instructions forward, reloading operands
// that coupling left spilled at this block's entry, and locally spilling
// whichever of b's live-in values has the farthest next-use while the
// block's cached peak demand, less what is already spilled at entry,
// still exceeds target. Values defined inside b are not candidates for a
// local spill. It finishes by recording b's exit spill set for its
// successors' coupling.
func (s *spiller) processBody(b *ir.Block) {
	bid := b.ID
	spilled := map[ir.TempID]bool{}
	for id, v := range s.entrySpilled[bid] {
		spilled[id] = v
	}

	overS := b.SGPRDemand - s.target.MaxSGPR
	overV := b.VGPRDemand - s.target.MaxVGPR
	for id, v := range spilled {
		if !v {
			continue
		}
		if s.rc[id].Bank == ir.BankScalar {
			overS -= int(s.rc[id].Size)
		} else {
			overV -= int(s.rc[id].Size)
		}
	}

	reloadedHere := map[ir.TempID]bool{}

	for i := 0; i < len(b.Instrs); i++ {
		instr := b.Instrs[i]
		if instr.IsPhi() {
			continue
		}

		for _, op := range instr.Operands {
			t, ok := op.IsTemp()
			if !ok || !spilled[t.ID] || reloadedHere[t.ID] {
				continue
			}
			reload := &ir.Instruction{
				Opcode:  ir.OpReload,
				Defs:    []ir.Definition{{Temp: ir.Temp{ID: t.ID, RC: s.rc[t.ID]}}},
				SpillID: s.spillIDFor(t.ID),
			}
			b.InsertBefore(i, reload)
			i++
			delete(spilled, t.ID)
			reloadedHere[t.ID] = true
		}

		for overV > 0 {
			id, ok := s.farthestNextUse(bid, s.localCandidates(bid, spilled, ir.BankVector))
			if !ok {
				break
			}
			s.emitLocalSpill(b, &i, id, spilled)
			overV -= int(s.rc[id].Size)
		}
		for overS > 0 {
			id, ok := s.farthestNextUse(bid, s.localCandidates(bid, spilled, ir.BankScalar))
			if !ok {
				break
			}
			s.emitLocalSpill(b, &i, id, spilled)
			overS -= int(s.rc[id].Size)
		}
	}

	s.exitSpilled[bid] = spilled
}

func (s *spiller) localCandidates(bid ir.BlockID, spilled map[ir.TempID]bool, bank ir.Bank) []ir.TempID {
	var out []ir.TempID
	for _, id := range s.live.LiveIn[bid].Items() {
		if !spilled[id] && s.rc[id].Bank == bank {
			out = append(out, id)
		}
	}
	return out
}

// emitLocalSpill inserts a spill of id before *i (advancing it so the
// caller's loop still lands on the original instruction), records
// interference with every id currently spilled, and marks id spilled.
func (s *spiller) emitLocalSpill(b *ir.Block, i *int, id ir.TempID, spilled map[ir.TempID]bool) {
	sid := s.spillIDFor(id)
	for other := range spilled {
		s.markInterfere(sid, s.spillIDFor(other))
	}
	spill := &ir.Instruction{
		Opcode:   ir.OpSpill,
		Operands: []ir.Operand{ir.TempOperand(ir.Temp{ID: id, RC: s.rc[id]})},
		SpillID:  sid,
	}
	b.InsertBefore(*i, spill)
	*i++
	spilled[id] = true
}
