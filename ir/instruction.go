package ir

import (
	"fmt"
	"strings"
)

// Instruction is (opcode, format, operands, definitions) plus a few
// opcode-specific auxiliary fields, following the tagged-union-with-
// shared-header shape called for by Design Notes §9: rather than a type
// hierarchy per opcode, every Instruction carries the same struct and
// interprets its aux fields according to Opcode.
type Instruction struct {
	Opcode Opcode
	Format Format

	Operands []Operand
	Defs     []Definition

	// Targets holds successor block ids for OpBranch (linear CFG order:
	// true-target, false-target, ...; a single target for unconditional).
	Targets []BlockID

	// PredBlocks holds, for OpPhi/OpLinearPhi, the predecessor block each
	// operand in Operands corresponds to, same order and length
	// (invariant 2).
	PredBlocks []BlockID

	// SwizzleLane is the lane index for OpSwizzle.
	SwizzleLane int

	// SpillID/ SlotBase / SlotIndex are filled in progressively by the
	// spiller: SpillID identifies the abstract spill id pre-coloring;
	// SlotBase/SlotIndex identify the backing linear-vgpr and the 0..63
	// index within it post-coloring, for OpSpill/OpReload.
	SpillID   SpillID
	SlotBase  PhysReg
	SlotIndex int

	// Literal holds a trailing literal constant word for non-inline
	// constants, when the instruction format requires one (§3.2).
	Literal    uint32
	HasLiteral bool

	// Done/ValidMask mark an OpExport-equivalent "final output" flag; not
	// otherwise interpreted by this core (encoding is out of scope), kept
	// here only so instruction-selection metadata survives the pipeline
	// unmodified.
	Done, ValidMask bool
}

// SpillID names an abstract spill slot allocated by the spiller, later
// mapped onto a concrete linear-vgpr + index by slot coloring.
type SpillID uint32

// SpillIDInvalid is the "not spilled" sentinel.
const SpillIDInvalid SpillID = 0

// NewInstruction builds a bare Instruction with the given opcode/format.
func NewInstruction(op Opcode, format Format) *Instruction {
	return &Instruction{Opcode: op, Format: format}
}

// IsPseudo reports whether this is one of the pipeline's pseudo opcodes.
func (i *Instruction) IsPseudo() bool {
	switch i.Opcode {
	case OpPhi, OpLinearPhi, OpParallelCopy, OpSpill, OpReload,
		OpStartLinearVGPR, OpEndLinearVGPR, OpLogicalStart, OpLogicalEnd, OpBranch:
		return true
	default:
		return false
	}
}

// IsPhi reports whether this is a phi of either flavor.
func (i *Instruction) IsPhi() bool {
	return i.Opcode == OpPhi || i.Opcode == OpLinearPhi
}

// Def returns the single definition of this instruction, if any.
func (i *Instruction) Def() (Definition, bool) {
	if len(i.Defs) == 0 {
		return Definition{}, false
	}
	return i.Defs[0], true
}

// String implements fmt.Stringer.
func (i *Instruction) String() string {
	var b strings.Builder
	if len(i.Defs) > 0 {
		defs := make([]string, len(i.Defs))
		for idx, d := range i.Defs {
			defs[idx] = d.String()
		}
		fmt.Fprintf(&b, "%s = ", strings.Join(defs, ", "))
	}
	fmt.Fprintf(&b, "%s", i.Opcode)
	if i.Format != FormatNone {
		fmt.Fprintf(&b, "<%s>", i.Format)
	}
	ops := make([]string, len(i.Operands))
	for idx, o := range i.Operands {
		ops[idx] = o.String()
	}
	if len(ops) > 0 {
		fmt.Fprintf(&b, " %s", strings.Join(ops, ", "))
	}
	if len(i.Targets) > 0 {
		targets := make([]string, len(i.Targets))
		for idx, t := range i.Targets {
			targets[idx] = t.String()
		}
		fmt.Fprintf(&b, " -> %s", strings.Join(targets, ", "))
	}
	return b.String()
}
