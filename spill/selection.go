package spill

import "github.com/wavecc/shadercore/ir"

// selectEntrySpillSet decides, for block b, which Temps live at its
// entry are spilled rather than resident, per §4.4's three block-kind
// rules, then layers the phi rule ("a phi is spilled on entry iff all
// its operands are spilled") on top regardless of kind.
func (s *spiller) selectEntrySpillSet(b *ir.Block) {
	bid := b.ID
	var set map[ir.TempID]bool
	switch {
	case len(b.LinearPreds) == 0:
		set = map[ir.TempID]bool{}
	case s.loops.Headers[bid]:
		set = s.selectLoopHeaderSet(b)
	case len(b.LinearPreds) == 1:
		set = s.selectSinglePredSet(b)
	default:
		set = s.selectMergeSet(b)
	}
	for _, phi := range b.Phis() {
		def, ok := phi.Def()
		if !ok {
			continue
		}
		set[def.Temp.ID] = s.allOperandsSpilled(phi)
	}
	s.entrySpilled[bid] = set
}

func (s *spiller) allOperandsSpilled(phi *ir.Instruction) bool {
	for idx, op := range phi.Operands {
		t, ok := op.IsTemp()
		if !ok || idx >= len(phi.PredBlocks) {
			return false
		}
		if !s.exitSpilledSet(phi.PredBlocks[idx])[t.ID] {
			return false
		}
	}
	return len(phi.Operands) > 0
}

func (s *spiller) exitSpilledSet(b ir.BlockID) map[ir.TempID]bool {
	if set, ok := s.exitSpilled[b]; ok {
		return set
	}
	return map[ir.TempID]bool{}
}

// selectLoopHeaderSet spills live-through loop values with the farthest
// next-use, vector bank first then scalar, until the loop's peak demand
// fits the target; any remainder is left to processBody's local spill.
func (s *spiller) selectLoopHeaderSet(b *ir.Block) map[ir.TempID]bool {
	bid := b.ID
	members := s.loopMembers(bid)
	maxS, maxV := 0, 0
	for m := range members {
		blk := s.p.Blocks[m]
		if blk.SGPRDemand > maxS {
			maxS = blk.SGPRDemand
		}
		if blk.VGPRDemand > maxV {
			maxV = blk.VGPRDemand
		}
	}

	spilled := map[ir.TempID]bool{}
	candidates := func(bank ir.Bank) []ir.TempID {
		var out []ir.TempID
		for _, id := range s.live.LiveIn[bid].Items() {
			if spilled[id] {
				continue
			}
			if s.rc[id].Bank == bank && liveThrough(members, s.live, bid, id, s.loops) {
				out = append(out, id)
			}
		}
		return out
	}

	for maxV > s.target.MaxVGPR {
		id, ok := s.farthestNextUse(bid, candidates(ir.BankVector))
		if !ok {
			break
		}
		spilled[id] = true
		maxV -= int(s.rc[id].Size)
	}
	for maxS > s.target.MaxSGPR {
		id, ok := s.farthestNextUse(bid, candidates(ir.BankScalar))
		if !ok {
			break
		}
		spilled[id] = true
		maxS -= int(s.rc[id].Size)
	}
	return spilled
}

func (s *spiller) loopMembers(header ir.BlockID) map[ir.BlockID]bool {
	out := map[ir.BlockID]bool{}
	for i := range s.p.Blocks {
		b := ir.BlockID(i)
		if s.loops.Contains(header, b) {
			out[b] = true
		}
	}
	return out
}

// selectSinglePredSet inherits the sole predecessor's exit spill set,
// restricted to values still live into b; if demand is still too high,
// it spills more of the inherited-resident values by farthest next-use.
func (s *spiller) selectSinglePredSet(b *ir.Block) map[ir.TempID]bool {
	bid := b.ID
	pred := b.LinearPreds[0]
	predSet := s.exitSpilledSet(pred)

	set := map[ir.TempID]bool{}
	var residentS, residentV []ir.TempID
	demandS, demandV := 0, 0
	for _, id := range s.live.LiveIn[bid].Items() {
		spilled := predSet[id]
		if spilled {
			set[id] = true
			continue
		}
		switch s.rc[id].Bank {
		case ir.BankScalar:
			demandS += int(s.rc[id].Size)
			residentS = append(residentS, id)
		case ir.BankVector, ir.BankLinearVGPR:
			demandV += int(s.rc[id].Size)
			residentV = append(residentV, id)
		}
	}

	for demandV > s.target.MaxVGPR {
		id, ok := s.farthestNextUse(bid, residentV)
		if !ok {
			break
		}
		set[id] = true
		demandV -= int(s.rc[id].Size)
		residentV = removeID(residentV, id)
	}
	for demandS > s.target.MaxSGPR {
		id, ok := s.farthestNextUse(bid, residentS)
		if !ok {
			break
		}
		set[id] = true
		demandS -= int(s.rc[id].Size)
		residentS = removeID(residentS, id)
	}
	return set
}

// selectMergeSet spills on entry any value spilled at every predecessor
// that carries it live, then, if demand is still too high, additionally
// spills partial-spill candidates (spilled at some but not all
// predecessors) by farthest next-use.
func (s *spiller) selectMergeSet(b *ir.Block) map[ir.TempID]bool {
	bid := b.ID
	set := map[ir.TempID]bool{}
	var partial []ir.TempID
	demandS, demandV := 0, 0

	for _, id := range s.live.LiveIn[bid].Items() {
		spilledEverywhere := true
		spilledSomewhere := false
		for _, pred := range b.LinearPreds {
			if !s.live.LiveOutOf(pred).Has(id) {
				continue
			}
			if s.exitSpilledSet(pred)[id] {
				spilledSomewhere = true
			} else {
				spilledEverywhere = false
			}
		}
		switch {
		case spilledEverywhere && spilledSomewhere:
			set[id] = true
		default:
			switch s.rc[id].Bank {
			case ir.BankScalar:
				demandS += int(s.rc[id].Size)
			case ir.BankVector, ir.BankLinearVGPR:
				demandV += int(s.rc[id].Size)
			}
			if spilledSomewhere {
				partial = append(partial, id)
			}
		}
	}

	for demandV > s.target.MaxVGPR || demandS > s.target.MaxSGPR {
		id, ok := s.farthestNextUse(bid, partial)
		if !ok {
			break
		}
		set[id] = true
		switch s.rc[id].Bank {
		case ir.BankScalar:
			demandS -= int(s.rc[id].Size)
		case ir.BankVector, ir.BankLinearVGPR:
			demandV -= int(s.rc[id].Size)
		}
		partial = removeID(partial, id)
	}
	return set
}

func removeID(s []ir.TempID, id ir.TempID) []ir.TempID {
	out := s[:0]
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
