package spill

import "github.com/wavecc/shadercore/ir"

// coupleBlock implements add_coupling_code: for every predecessor edge,
// reconcile this block's chosen entry spill set against what each
// predecessor actually leaves spilled/resident at its exit.
func (s *spiller) coupleBlock(b *ir.Block) {
	bid := b.ID
	want := s.entrySpilled[bid]

	for _, id := range s.live.LiveIn[bid].Items() {
		for _, pred := range b.LinearPreds {
			if !s.live.LiveOutOf(pred).Has(id) {
				continue
			}
			s.coupleEdge(s.p.Block(pred), b, id, want[id])
		}
	}

	for _, phi := range b.Phis() {
		for idx, op := range phi.Operands {
			t, ok := op.IsTemp()
			if !ok || idx >= len(phi.PredBlocks) {
				continue
			}
			def, ok := phi.Def()
			if !ok {
				continue
			}
			pred := phi.PredBlocks[idx]
			s.coupleEdge(s.p.Block(pred), b, t.ID, want[def.Temp.ID])
			s.unionAffinity(s.spillIDFor(def.Temp.ID), s.spillIDFor(t.ID))
		}
	}
}

// coupleEdge reconciles a single (pred, id) pair against this block's
// desired entry residency for id: reload at the child entry if id is
// wanted resident but left spilled at pred, or spill at the parent exit
// if id is wanted spilled but still resident at pred.
func (s *spiller) coupleEdge(pred, child *ir.Block, id ir.TempID, wantSpilled bool) {
	gotSpilled := s.exitSpilledSet(pred.ID)[id]
	if wantSpilled == gotSpilled {
		return
	}
	temp := ir.Temp{ID: id, RC: s.rc[id]}
	if !wantSpilled && gotSpilled {
		reload := &ir.Instruction{
			Opcode:  ir.OpReload,
			Defs:    []ir.Definition{{Temp: temp}},
			SpillID: s.spillIDFor(id),
		}
		insertAtEntry(child, reload)
		return
	}
	spill := &ir.Instruction{
		Opcode:   ir.OpSpill,
		Operands: []ir.Operand{ir.TempOperand(temp)},
		SpillID:  s.spillIDFor(id),
	}
	insertBeforeTerminator(pred, spill)
}

func insertAtEntry(b *ir.Block, instr *ir.Instruction) {
	b.InsertBefore(len(b.Phis()), instr)
}

func insertBeforeTerminator(b *ir.Block, instr *ir.Instruction) {
	term := b.Terminator()
	if term == nil {
		b.AppendInstr(instr)
		return
	}
	switch term.Opcode {
	case ir.OpBranch, ir.OpLogicalEnd:
		b.InsertBefore(len(b.Instrs)-1, instr)
	default:
		b.AppendInstr(instr)
	}
}
