package regalloc

import "github.com/wavecc/shadercore/ir"

// promoteIfNeeded implements §4.5's VOP2 -> VOP3A promotion: a
// carry-producing vector op forces its secondary destination into VCC;
// if that register turned out unavailable for a no-eviction placement
// (another live value occupies exactly VCCLo/VCCLo+1 and eviction still
// failed), the instruction is rewritten to the VOP3A encoding, which
// allows an arbitrary destination pair instead.
func promoteIfNeeded(a *allocator, instr *ir.Instruction) {
	if instr.Opcode != ir.OpAddCarry {
		return
	}
	if len(instr.Defs) < 2 {
		return
	}
	carry := &instr.Defs[1]
	if carry.PhysReg().Valid() && carry.PhysReg() == ir.VCCLo(a.cc) {
		return
	}
	instr.Format = (instr.Format &^ ir.FormatVOP2) | ir.FormatVOP3A
}
