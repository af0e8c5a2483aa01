// Package spill implements stage D: SSA-form spilling of scalar-bank
// overflow into linear-vgpr storage, per §4.4.
//
// Reload keeps the identity of the Temp it reloads (OpReload's single
// Definition re-defines the same Temp id rather than minting a fresh
// SSA value); see DESIGN.md for why this core takes that simplification
// over full reload-renaming, and what it gives up.
package spill

import (
	"github.com/wavecc/shadercore/chip"
	"github.com/wavecc/shadercore/ir"
	"github.com/wavecc/shadercore/liveness"
)

// Result summarizes what the spiller did, consumed by the pipeline to
// report final resource usage.
type Result struct {
	SpillIDCount  int
	NumLinearVGPRsUsed int
}

type spiller struct {
	p      *ir.Program
	live   *liveness.Result
	loops  *ir.LoopInfo
	nu     *NextUse
	target chip.WaveTableEntry
	rc     map[ir.TempID]ir.RC

	entrySpilled map[ir.BlockID]map[ir.TempID]bool
	exitSpilled  map[ir.BlockID]map[ir.TempID]bool

	spillIDOf  map[ir.TempID]ir.SpillID
	idTemp     map[ir.SpillID]ir.TempID
	nextID     ir.SpillID
	interferes map[ir.SpillID]map[ir.SpillID]bool
	affinityOf map[ir.SpillID]ir.SpillID
}

// Run executes stage D over p. Only scalar-bank overflow backed by
// linear-vgpr storage is handled; vector-to-memory spilling remains out
// of scope (open question (a)).
func Run(p *ir.Program, live *liveness.Result, target chip.WaveTableEntry) *Result {
	s := &spiller{
		p: p, live: live, target: target,
		entrySpilled: map[ir.BlockID]map[ir.TempID]bool{},
		exitSpilled:  map[ir.BlockID]map[ir.TempID]bool{},
		spillIDOf:    map[ir.TempID]ir.SpillID{},
		idTemp:       map[ir.SpillID]ir.TempID{},
		interferes:   map[ir.SpillID]map[ir.SpillID]bool{},
		affinityOf:   map[ir.SpillID]ir.SpillID{},
	}
	s.rc = buildTempRC(p)
	view := ir.LinearView(p)
	dom := ir.BuildDomTree(len(p.Blocks), ir.BlockID(0), view)
	s.loops = ir.BuildLoopInfo(len(p.Blocks), view, dom)
	s.nu = computeNextUse(p, s.loops)

	for _, b := range p.Blocks {
		s.selectEntrySpillSet(b)
		s.coupleBlock(b)
		s.processBody(b)
	}

	return s.colorAndRewrite()
}

func buildTempRC(p *ir.Program) map[ir.TempID]ir.RC {
	m := make(map[ir.TempID]ir.RC, p.NumTemps())
	for _, blk := range p.Blocks {
		for _, instr := range blk.Instrs {
			for _, d := range instr.Defs {
				m[d.Temp.ID] = d.Temp.RC
			}
		}
	}
	return m
}

// spillIDFor returns the (lazily allocated) abstract spill id tracking
// id's spill episodes. One id per original Temp, reused across its
// spill/reload occurrences (see the package doc's reload-identity note).
func (s *spiller) spillIDFor(id ir.TempID) ir.SpillID {
	if sid, ok := s.spillIDOf[id]; ok {
		return sid
	}
	s.nextID++
	sid := s.nextID
	s.spillIDOf[id] = sid
	s.idTemp[sid] = id
	return sid
}

func (s *spiller) find(id ir.SpillID) ir.SpillID {
	for {
		p, ok := s.affinityOf[id]
		if !ok || p == id {
			return id
		}
		id = p
	}
}

// unionAffinity merges a's and b's interference sets before coloring, so
// phi operands and their definitions tend to land in the same slot.
func (s *spiller) unionAffinity(a, b ir.SpillID) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	merged := map[ir.SpillID]bool{}
	for id := range s.interferes[ra] {
		merged[id] = true
	}
	for id := range s.interferes[rb] {
		merged[id] = true
	}
	s.interferes[ra] = merged
	delete(s.interferes, rb)
	s.affinityOf[rb] = ra
}

func (s *spiller) markInterfere(a, b ir.SpillID) {
	a, b = s.find(a), s.find(b)
	if a == b {
		return
	}
	if s.interferes[a] == nil {
		s.interferes[a] = map[ir.SpillID]bool{}
	}
	if s.interferes[b] == nil {
		s.interferes[b] = map[ir.SpillID]bool{}
	}
	s.interferes[a][b] = true
	s.interferes[b][a] = true
}

// farthestNextUse returns the candidate with the largest next-use
// distance at block's entry (temps with no recorded use are treated as
// infinitely far -- the safest to evict).
func (s *spiller) farthestNextUse(block ir.BlockID, candidates []ir.TempID) (ir.TempID, bool) {
	best := ir.TempID(0)
	bestDist := -1
	found := false
	for _, id := range candidates {
		d, ok := s.nu.At(block, id)
		if !ok {
			d = 1 << 30
		}
		if !found || d > bestDist {
			best, bestDist, found = id, d, true
		}
	}
	return best, found
}

func liveThrough(members map[ir.BlockID]bool, live *liveness.Result, header ir.BlockID, id ir.TempID, loops *ir.LoopInfo) bool {
	if !live.LiveOutOf(header).Has(id) && !live.LiveIn[header].Has(id) {
		return false
	}
	for m := range members {
		if loops.Latches[header] != nil {
			for _, latch := range loops.Latches[header] {
				if m == latch && !live.LiveOutOf(latch).Has(id) {
					return false
				}
			}
		}
	}
	return true
}
