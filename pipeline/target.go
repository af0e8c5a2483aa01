package pipeline

import (
	"github.com/wavecc/shadercore/chip"
	"github.com/wavecc/shadercore/ir"
	"github.com/wavecc/shadercore/liveness"
)

// selectTarget picks the wave table entry regalloc and spill size
// themselves against. config.num_waves, when non-zero, is an explicit
// override from the driver (§6's configuration options) naming a row
// directly; otherwise the entry is derived from measured demand, first
// trying to fit both banks outright and falling back to a vector-only
// fit when scalar demand will be brought down by spilling instead
// (vector values have no spill path, open question (a)).
//
// badOverride distinguishes why selection failed: true means
// config.num_waves names no row at all (an InternalInconsistency, a
// driver configuration bug), false means demand itself exceeds every
// row's capacity (a ResourceExhaustion, since selection already tried
// every row).
func selectTarget(p *ir.Program, demand liveness.Demand) (target chip.WaveTableEntry, ok bool, badOverride bool) {
	if p.Config.NumWaves != 0 {
		for _, e := range chip.WaveTable {
			if e.NumWaves == p.Config.NumWaves {
				return e, true, false
			}
		}
		return chip.WaveTableEntry{}, false, true
	}
	if e, ok := chip.SelectWaveTableEntry(demand.Scalar, demand.Vector); ok {
		return e, true, false
	}
	e, ok := chip.SelectByVectorBound(demand.Vector)
	return e, ok, false
}
