// Package text implements the line-oriented textual form of ir.Program
// named by §3's ADD note: a debug-dump-style encoding good enough for
// cmd/shaderopt and golden tests, not a wire format. Format produces it;
// Parse reads back the subset a driver would hand in before the
// pipeline runs (arithmetic, phis, branches -- not the spill/copy/
// bracket pseudo-opcodes the pipeline itself introduces and consumes
// internally).
package text

import (
	"fmt"
	"strings"

	"github.com/wavecc/shadercore/chip"
	"github.com/wavecc/shadercore/ir"
)

// Format renders p as text, one block per paragraph, in layout order.
func Format(p *ir.Program) string {
	var b strings.Builder

	fmt.Fprintf(&b, "chip_class %s\n", chipClassName(p.Config.ChipClass))
	if p.Config.NumWaves != 0 {
		fmt.Fprintf(&b, "num_waves %d\n", p.Config.NumWaves)
	}
	if p.Config.NumSGPRs != 0 {
		fmt.Fprintf(&b, "num_sgprs %d\n", p.Config.NumSGPRs)
	}
	if p.Config.NumVGPRs != 0 {
		fmt.Fprintf(&b, "num_vgprs %d\n", p.Config.NumVGPRs)
	}

	for _, blk := range p.Blocks {
		fmt.Fprintf(&b, "\nblock %s\n", blk.ID)
		if len(blk.LogicalPreds) > 0 {
			fmt.Fprintf(&b, "  preds_logical %s\n", joinBlockIDs(blk.LogicalPreds))
		}
		if len(blk.LinearPreds) > 0 {
			fmt.Fprintf(&b, "  preds_linear %s\n", joinBlockIDs(blk.LinearPreds))
		}
		if len(blk.LogicalSuccs) > 0 {
			fmt.Fprintf(&b, "  succs_logical %s\n", joinBlockIDs(blk.LogicalSuccs))
		}
		if len(blk.LinearSuccs) > 0 {
			fmt.Fprintf(&b, "  succs_linear %s\n", joinBlockIDs(blk.LinearSuccs))
		}
		for _, instr := range blk.Instrs {
			fmt.Fprintf(&b, "  %s\n", formatInstr(instr))
		}
	}

	return b.String()
}

func chipClassName(c ir.ChipClass) string {
	switch c {
	case chip.RDNA2:
		return "RDNA2"
	case chip.CDNA2:
		return "CDNA2"
	default:
		return "unknown"
	}
}

func joinBlockIDs(ids []ir.BlockID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}

func formatInstr(instr *ir.Instruction) string {
	var b strings.Builder

	if len(instr.Defs) > 0 {
		defs := make([]string, len(instr.Defs))
		for i, d := range instr.Defs {
			defs[i] = formatDef(d)
		}
		fmt.Fprintf(&b, "%s = ", strings.Join(defs, ", "))
	}

	fmt.Fprintf(&b, "%s", instr.Opcode)
	if instr.Format != ir.FormatNone {
		fmt.Fprintf(&b, "<%s>", instr.Format.Base())
	}

	if instr.IsPhi() {
		parts := make([]string, len(instr.Operands))
		for i, op := range instr.Operands {
			pred := "bb?"
			if i < len(instr.PredBlocks) {
				pred = instr.PredBlocks[i].String()
			}
			parts[i] = fmt.Sprintf("%s:%s", pred, formatOperand(op))
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, " %s", strings.Join(parts, ", "))
		}
	} else if len(instr.Operands) > 0 {
		parts := make([]string, len(instr.Operands))
		for i, op := range instr.Operands {
			parts[i] = formatOperand(op)
		}
		fmt.Fprintf(&b, " %s", strings.Join(parts, ", "))
	}

	if len(instr.Targets) > 0 {
		parts := make([]string, len(instr.Targets))
		for i, t := range instr.Targets {
			parts[i] = t.String()
		}
		fmt.Fprintf(&b, " -> %s", strings.Join(parts, ", "))
	}

	if instr.HasLiteral {
		fmt.Fprintf(&b, " lit=%d", instr.Literal)
	}
	if instr.SpillID != ir.SpillIDInvalid {
		fmt.Fprintf(&b, " sid=%d", instr.SpillID)
	}
	if instr.Opcode == ir.OpSpill || instr.Opcode == ir.OpReload {
		fmt.Fprintf(&b, " slot=%s/%d", formatPhysReg(instr.SlotBase), instr.SlotIndex)
	}

	return b.String()
}

func formatDef(d ir.Definition) string {
	s := formatTemp(d.Temp)
	if d.PhysReg().Valid() {
		s += "@" + formatPhysReg(d.PhysReg())
	}
	return s
}

func formatOperand(op ir.Operand) string {
	switch op.Kind() {
	case ir.OperandKindTemp:
		t, _ := op.IsTemp()
		s := formatTemp(t)
		if op.Kill() {
			s += "!"
		}
		if op.PhysReg().Valid() {
			s += "@" + formatPhysReg(op.PhysReg())
		}
		return s
	case ir.OperandKindInlineConstant:
		bits, _ := op.ConstantBits()
		return fmt.Sprintf("#%d", int32(bits))
	case ir.OperandKindUndef:
		return fmt.Sprintf("undef:%s", op.RC())
	case ir.OperandKindPhysReg:
		return formatPhysReg(op.PhysReg())
	default:
		return "<invalid>"
	}
}

func formatTemp(t ir.Temp) string {
	return fmt.Sprintf("%%%d:%s", t.ID, t.RC)
}

func formatPhysReg(r ir.PhysReg) string {
	return fmt.Sprintf("%s%d", r.Bank(), r.Index())
}
