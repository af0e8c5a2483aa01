package regalloc

import "github.com/wavecc/shadercore/ir"

// registerPhi places a phi's own definition exactly as any other
// definition, then resolves each operand's PhysReg from its defining
// block's already-committed placement. Dominance guarantees every
// operand is resolvable except a loop-header phi's back-edge operand,
// whose defining block has not been filled yet; that one slot is
// queued in backpatch and completed once its block fills (§4.5's
// "complete its incomplete phis" moment, specialized to placement
// rather than value identity since the phi's value-level operands are
// already fixed by the IR).
func (a *allocator) registerPhi(b *ir.Block, f *file, phi *ir.Instruction) {
	a.collectPhiAffinity(phi)

	idx := b.IndexOf(phi)
	for i := range phi.Defs {
		def := &phi.Defs[i]
		bound := a.bound(def.Temp.RC.Bank)
		reg := a.place(b, f, phi, &idx, *def, bound)
		def.AssignPhysReg(reg)
		f.occupy(reg, int(def.Temp.RC.Size), def.Temp.ID)
		a.lastPlacement[def.Temp.ID] = reg
	}

	for idx := range phi.Operands {
		op := &phi.Operands[idx]
		t, ok := op.IsTemp()
		if !ok || idx >= len(phi.PredBlocks) {
			continue
		}
		pred := phi.PredBlocks[idx]
		if reg, ok := a.lastPlacement[t.ID]; ok {
			op.AssignPhysReg(reg)
			continue
		}
		a.backpatch[pred] = append(a.backpatch[pred], backpatchEntry{op: op, id: t.ID})
	}
}

// collectPhiAffinity implements §4.5's affinity rule: the operand with
// the smallest Temp id whose predecessor has already been processed
// becomes the preferred register, hinted onto the phi's definition and
// onto every not-yet-placed operand so they tend to converge on the
// same physical register and avoid a reconciling copy later.
func (a *allocator) collectPhiAffinity(phi *ir.Instruction) {
	var pref ir.PhysReg = ir.PhysRegInvalid
	var prefID ir.TempID
	for idx, op := range phi.Operands {
		t, ok := op.IsTemp()
		if !ok || idx >= len(phi.PredBlocks) {
			continue
		}
		reg, known := a.lastPlacement[t.ID]
		if !known {
			continue
		}
		if !pref.Valid() || t.ID < prefID {
			pref, prefID = reg, t.ID
		}
	}
	if !pref.Valid() {
		return
	}
	for i := range phi.Defs {
		a.affinity[phi.Defs[i].Temp.ID] = pref
	}
	for idx, op := range phi.Operands {
		t, ok := op.IsTemp()
		if !ok || idx >= len(phi.PredBlocks) {
			continue
		}
		if _, known := a.lastPlacement[t.ID]; !known {
			a.affinity[t.ID] = pref
		}
	}
}

// resolveBackpatches completes every operand waiting on filled's
// definitions, now that filled's walk has committed its placements.
func (a *allocator) resolveBackpatches(filled ir.BlockID) {
	entries := a.backpatch[filled]
	delete(a.backpatch, filled)
	for _, e := range entries {
		if reg, ok := a.lastPlacement[e.id]; ok {
			e.op.AssignPhysReg(reg)
		}
	}
}
