package ir

import "fmt"

// OperandKind discriminates the tagged union Operand represents.
type OperandKind uint8

const (
	OperandInvalid OperandKind = iota
	// OperandKindTemp is a reference to an SSA Temp, resolved to a Temp
	// (pre-allocation) and eventually also to a PhysReg (post-allocation).
	OperandKindTemp
	// OperandKindInlineConstant carries a raw 32-bit constant that may or
	// may not be inline-encodable; see InlineEncodable.
	OperandKindInlineConstant
	// OperandKindUndef is an explicitly-undefined value (no def required).
	OperandKindUndef
	// OperandKindPhysReg is a reference directly to a physical register,
	// used for fixed operands before allocation assigns a Temp-bound one.
	OperandKindPhysReg
)

// Operand is a tagged union over {Temp, InlineConstant(u32), Undef,
// PhysReg(reg, rc)}, per the data model. It carries a kill flag (true =
// last use of the referenced Temp along this path). liveness.Analyze does
// not set the flag; the only setter in this module is ir/text's parser,
// for an operand written with a trailing '!'.
type Operand struct {
	kind    OperandKind
	temp    Temp
	phys    PhysReg
	physRC  RC
	u32     uint32
	killed  bool
	assign  PhysReg // filled in by the register allocator for OperandKindTemp operands.
}

// TempOperand builds an Operand referencing the given Temp.
func TempOperand(t Temp) Operand {
	return Operand{kind: OperandKindTemp, temp: t, assign: PhysRegInvalid}
}

// InlineConstantOperand builds an Operand carrying a raw constant.
func InlineConstantOperand(bits uint32) Operand {
	return Operand{kind: OperandKindInlineConstant, u32: bits}
}

// UndefOperand builds an undef Operand of the given class.
func UndefOperand(rc RC) Operand {
	return Operand{kind: OperandKindUndef, physRC: rc}
}

// PhysRegOperand builds an Operand that is fixed to a physical register
// before allocation runs (e.g. a hardware-forced source).
func PhysRegOperand(r PhysReg, rc RC) Operand {
	return Operand{kind: OperandKindPhysReg, phys: r, physRC: rc, assign: r}
}

// Kind returns the tag of this union.
func (o Operand) Kind() OperandKind { return o.kind }

// IsTemp reports whether this operand references a Temp, and returns it.
func (o Operand) IsTemp() (Temp, bool) {
	return o.temp, o.kind == OperandKindTemp
}

// RC returns the register class of this operand, regardless of variant.
func (o Operand) RC() RC {
	switch o.kind {
	case OperandKindTemp:
		return o.temp.RC
	case OperandKindUndef, OperandKindPhysReg:
		return o.physRC
	default:
		return RC{}
	}
}

// ConstantBits returns the raw bits of an inline-constant operand.
func (o Operand) ConstantBits() (uint32, bool) {
	return o.u32, o.kind == OperandKindInlineConstant
}

// Kill reports whether this is the last use of its Temp along the path
// liveness was computed on.
func (o Operand) Kill() bool { return o.killed }

// SetKill sets the kill flag.
func (o *Operand) SetKill(k bool) { o.killed = k }

// PhysReg returns the physical register bound to this operand. Before
// allocation this is only valid for OperandKindPhysReg operands (fixed
// placements); after allocation it is valid for OperandKindTemp operands
// too (invariant 5).
func (o Operand) PhysReg() PhysReg {
	if o.kind == OperandKindPhysReg {
		return o.phys
	}
	return o.assign
}

// AssignPhysReg binds a physical register to a Temp operand. Only the
// register allocator should call this.
func (o *Operand) AssignPhysReg(r PhysReg) {
	o.assign = r
}

// String implements fmt.Stringer.
func (o Operand) String() string {
	kill := ""
	if o.killed {
		kill = "!"
	}
	switch o.kind {
	case OperandKindTemp:
		if o.assign.Valid() {
			return fmt.Sprintf("%s%s(%s)", o.temp, kill, o.assign)
		}
		return fmt.Sprintf("%s%s", o.temp, kill)
	case OperandKindInlineConstant:
		return fmt.Sprintf("#%d", int32(o.u32))
	case OperandKindUndef:
		return "undef"
	case OperandKindPhysReg:
		return o.phys.String()
	default:
		return "<invalid-operand>"
	}
}
