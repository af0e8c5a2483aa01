package pipeline

import "github.com/wavecc/shadercore/ir"

// Encoder turns an allocated Program into the bytes a real device loads:
// branch-immediate patching, final instruction encoding, ELF packaging,
// and wait-state insertion. All four are out of scope for this core
// (§1); Encoder only names the boundary a driver implements once
// Compile has produced an allocated Program.
type Encoder interface {
	Encode(p *ir.Program) ([]byte, error)
}

// ReferenceInterpreter runs a Program against explicit per-lane input
// and returns the value bound to every Temp, for a driver's own
// correctness testing against real hardware semantics. A production
// implementation belongs to the driver; internal/refinterp is this
// core's own minimal stand-in, used only to test property 5 (spill
// semantics preservation) by diffing results taken before and after
// spilling runs.
type ReferenceInterpreter interface {
	Run(p *ir.Program, activeMask []bool) (map[ir.TempID][]uint32, error)
}
