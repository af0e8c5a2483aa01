package ir

import "math"

// InlineEncodable reports whether the given 32-bit constant bit pattern,
// interpreted as a small signed integer or one of the floating-point
// constants the ISA supports directly as an operand, can be encoded
// inline in an instruction word. Constants that do not qualify are
// "literal": they must be emitted as a trailing 32-bit word following
// the instruction (see the OperandKindInlineConstant doc and §6 encoding).
func InlineEncodable(bits uint32) bool {
	v := int32(bits)
	if v >= -16 && v <= 64 {
		return true
	}
	f := math.Float32frombits(bits)
	switch f {
	case 0.5, -0.5, 1.0, -1.0, 2.0, -2.0, 4.0, -4.0:
		return true
	case float32(1.0 / (2.0 * math.Pi)):
		return true
	}
	return false
}
