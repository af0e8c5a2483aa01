// Package chip holds the per-target-hardware configuration the core
// honors (§6): which register-file totals the liveness/occupancy and
// allocator stages size themselves against.
package chip

import "github.com/wavecc/shadercore/ir"

// Class names one of the two supported chip configurations. Values
// mirror ir.ChipClass; this package is the data-only home for the
// derived quantities the rest of the core reads.
type Class = ir.ChipClass

const (
	RDNA2 = ir.ChipClassA // 512 total scalar regs, max-addressable index 104.
	CDNA2 = ir.ChipClassB // 800 total scalar regs, max-addressable index 102.
)

// TotalScalarRegs returns the chip's total scalar register count.
func TotalScalarRegs(c Class) int { return c.TotalScalarRegs() }

// MaxAddressableScalarIndex returns the chip's max-addressable scalar index.
func MaxAddressableScalarIndex(c Class) int { return c.MaxAddressableScalarIndex() }

// vccReservation is the number of scalar dwords permanently reserved
// for the EXEC-carry register pair (VCC), added to scalar demand before
// computing occupancy (§4.3).
const vccReservation = 2

// WaveTableEntry is one row of the discrete occupancy-driven bank-bounds
// table named by §4.5.
type WaveTableEntry struct {
	NumWaves int
	MaxSGPR  int
	MaxVGPR  int
}

// WaveTable is the fixed table §4.5 names, ordered by decreasing
// occupancy (increasing per-wave register budget).
var WaveTable = []WaveTableEntry{
	{NumWaves: 10, MaxSGPR: 46, MaxVGPR: 24},
	{NumWaves: 9, MaxSGPR: 54, MaxVGPR: 28},
	{NumWaves: 8, MaxSGPR: 62, MaxVGPR: 32},
	{NumWaves: 7, MaxSGPR: 70, MaxVGPR: 36},
	{NumWaves: 6, MaxSGPR: 78, MaxVGPR: 40},
	{NumWaves: 5, MaxSGPR: 94, MaxVGPR: 48},
	{NumWaves: 4, MaxSGPR: 100, MaxVGPR: 256},
}

// round4 rounds n up to the nearest multiple of 4.
func round4(n int) int { return (n + 3) &^ 3 }

// round8 rounds n up to the nearest multiple of 8.
func round8(n int) int { return (n + 7) &^ 7 }

// DeriveOccupancy implements the §4.3 formula exactly:
//
//	num_waves = min(10, 256/round4(v), total_s/round8(s))
//
// with the scalar demand widened by the VCC reservation before rounding.
func DeriveOccupancy(c Class, scalarDemand, vectorDemand int) int {
	s := scalarDemand + vccReservation
	totalS := c.TotalScalarRegs()

	waves := 10
	if rv := round4(vectorDemand); rv > 0 {
		if byVector := 256 / rv; byVector < waves {
			waves = byVector
		}
	}
	if rs := round8(s); rs > 0 {
		if byScalar := totalS / rs; byScalar < waves {
			waves = byScalar
		}
	}
	if waves < 0 {
		waves = 0
	}
	return waves
}

// SelectWaveTableEntry returns the smallest wave-table entry whose
// (MaxSGPR, MaxVGPR) bounds both fit the given demand, or false if no
// entry fits (the caller should treat this as ResourceExhaustion).
func SelectWaveTableEntry(scalarDemand, vectorDemand int) (WaveTableEntry, bool) {
	for _, e := range WaveTable {
		if scalarDemand <= e.MaxSGPR && vectorDemand <= e.MaxVGPR {
			return e, true
		}
	}
	return WaveTableEntry{}, false
}

// SelectByVectorBound returns the highest-occupancy entry whose vector
// column alone accommodates vectorDemand, ignoring MaxSGPR -- the right
// query once scalar demand is going to be brought under budget by
// spilling instead of fitting outright, since vector values have no
// spill path (spec's open question (a)). False means vectorDemand
// exceeds even the lowest-occupancy row's 256 slots: ResourceExhaustion.
func SelectByVectorBound(vectorDemand int) (WaveTableEntry, bool) {
	for _, e := range WaveTable {
		if vectorDemand <= e.MaxVGPR {
			return e, true
		}
	}
	return WaveTableEntry{}, false
}

// TotalScalarFootprint returns the scalar dword count this entry
// commits once the permanent VCC reservation is added back on top of
// its ordinary MaxSGPR budget -- the number §6 means by
// "config.num_sgprs populated".
func (e WaveTableEntry) TotalScalarFootprint() int { return e.MaxSGPR + vccReservation }
