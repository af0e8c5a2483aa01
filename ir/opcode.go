package ir

// Opcode identifies what an Instruction computes. The set below covers
// the pseudo-opcodes the core itself introduces or consumes (phi,
// parallelcopy, spill/reload, linear-vgpr bracketing, logical brackets,
// branch) plus the subset of real arithmetic/intrinsic/texture opcodes
// divergence analysis (§4.1) classifies by name. Instruction selection,
// out of scope for this core, is responsible for producing any other
// real opcode; divergence analysis classifies the result of any
// unrecognized real opcode as divergent, whatever its operands.
type Opcode uint32

const (
	OpInvalid Opcode = iota

	// --- pseudo opcodes -------------------------------------------------

	OpPhi           // logical-CFG phi.
	OpLinearPhi     // linear-CFG phi.
	OpParallelCopy  // simultaneous assignment of many src->dst pairs.
	OpSpill         // spill a Temp to a spill slot.
	OpReload        // reload a Temp from a spill slot.
	OpStartLinearVGPR
	OpEndLinearVGPR
	OpLogicalStart
	OpLogicalEnd
	OpBranch

	// --- resolved by pseudo elimination (F), real from here on ------------

	OpCopy // single-register move; what a parallelcopy lowers into.

	// --- arithmetic ------------------------------------------------------

	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpNot
	OpAndNot // a AND NOT b, used by bool-phi lowering's EXEC blend.
	OpShl
	OpShr
	OpSelect // ternary select(cond, a, b), used by bool-phi lowering.

	// --- wavefront execution-mask access ---------------------------------

	OpReadEXEC // reads the current wavefront execution mask.

	// --- carry-producing arithmetic ---------------------------------------

	OpAddCarry // v_add_co_u32: vector add with a forced scalar carry-out.

	// --- vector construction / swizzle ------------------------------------

	OpVectorConstruct // builds a vector value from N scalar lane sources.
	OpSwizzle         // extracts lane i of a value produced by OpVectorConstruct.

	// --- uniform intrinsics ------------------------------------------------

	OpBallot
	OpReadFirstLane
	OpReadInvocation
	OpVoteAny
	OpVoteAll
	OpVoteIEq
	OpVoteFEq
	OpReduce
	OpLoadPushConstant
	OpResourceIndex
	OpClockWave

	// --- divergence-dependent intrinsics ------------------------------------

	OpLoadUBO
	OpLoadInterpolated
	OpLoadBarycentric

	// --- texture ------------------------------------------------------------

	OpTextureSample

	// --- misc -----------------------------------------------------------------

	OpLoadConst
	OpUndef
	OpDeref
)

// uniformIntrinsics are always-uniform per §4.1.
var uniformIntrinsics = map[Opcode]bool{
	OpBallot:           true,
	OpReadFirstLane:     true,
	OpReadInvocation:    true,
	OpVoteAny:           true,
	OpVoteAll:           true,
	OpVoteIEq:           true,
	OpVoteFEq:           true,
	OpReduce:            true,
	OpLoadPushConstant:  true,
	OpResourceIndex:     true,
	OpClockWave:         true,
}

// IsAlwaysUniformIntrinsic reports whether op is in the always-uniform
// intrinsic set named by §4.1.
func IsAlwaysUniformIntrinsic(op Opcode) bool { return uniformIntrinsics[op] }

// IsArithmetic reports whether op is treated as a plain arithmetic op
// for divergence purposes ("divergent iff any operand is divergent").
func IsArithmetic(op Opcode) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpAnd, OpOr, OpXor, OpNot, OpAndNot, OpShl, OpShr, OpSelect, OpVectorConstruct, OpAddCarry:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	switch o {
	case OpInvalid:
		return "invalid"
	case OpPhi:
		return "phi"
	case OpLinearPhi:
		return "linear_phi"
	case OpParallelCopy:
		return "parallelcopy"
	case OpSpill:
		return "spill"
	case OpReload:
		return "reload"
	case OpStartLinearVGPR:
		return "start_linear_vgpr"
	case OpEndLinearVGPR:
		return "end_linear_vgpr"
	case OpLogicalStart:
		return "logical_start"
	case OpLogicalEnd:
		return "logical_end"
	case OpBranch:
		return "branch"
	case OpCopy:
		return "mov"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpNot:
		return "not"
	case OpAndNot:
		return "andn2"
	case OpAddCarry:
		return "v_add_co_u32"
	case OpReadEXEC:
		return "read_exec"
	case OpShl:
		return "shl"
	case OpShr:
		return "shr"
	case OpSelect:
		return "select"
	case OpVectorConstruct:
		return "vector_construct"
	case OpSwizzle:
		return "swizzle"
	case OpBallot:
		return "ballot"
	case OpReadFirstLane:
		return "read_first_lane"
	case OpReadInvocation:
		return "read_invocation"
	case OpVoteAny:
		return "vote_any"
	case OpVoteAll:
		return "vote_all"
	case OpVoteIEq:
		return "vote_ieq"
	case OpVoteFEq:
		return "vote_feq"
	case OpReduce:
		return "reduce"
	case OpLoadPushConstant:
		return "load_push_constant"
	case OpResourceIndex:
		return "resource_index"
	case OpClockWave:
		return "clock_wave"
	case OpLoadUBO:
		return "load_ubo"
	case OpLoadInterpolated:
		return "load_interpolated"
	case OpLoadBarycentric:
		return "load_barycentric"
	case OpTextureSample:
		return "texture_sample"
	case OpLoadConst:
		return "load_const"
	case OpUndef:
		return "undef"
	case OpDeref:
		return "deref"
	default:
		return "unknown"
	}
}
