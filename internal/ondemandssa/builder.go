// Package ondemandssa extracts the Braun/Hack on-demand SSA construction
// algorithm (recursively read the current definition of a value, insert
// an incomplete phi at unsealed join points, complete it once the block
// seals, then test for triviality) as a single reusable type. It is
// grounded on the teacher's ssa.builder.findValue/Seal pair
// (internal/engine/wazevo/ssa/builder.go), generalized so both the
// divergent-bool phi lowering's running accumulator (§4.2) and the
// register allocator's phi repair (§4.5) can share one implementation,
// per Design Notes §9.
//
// A Resolver instance tracks exactly one logical "variable" (one
// accumulator, or one Temp being renamed) across the CFG; callers create
// one Resolver per variable they need on-demand SSA for.
package ondemandssa

// BlockID identifies a CFG block for the purposes of this package; it is
// opaque here so both stage B (linear-CFG blocks) and stage E (either
// CFG, depending on Temp bank) can use it.
type BlockID int

// ValueRef is an opaque handle to a value in the client's own value
// space (an ir.Temp id, or a synthetic accumulator value id).
type ValueRef int

// ValueRefInvalid is the "no value" sentinel.
const ValueRefInvalid ValueRef = -1

// Hooks are the client callbacks parameterizing the resolver, matching
// Design Notes §9's "get predecessor list" and "create phi".
type Hooks struct {
	// Preds returns the predecessor list of block, in the order phi
	// operands must follow (invariant 2).
	Preds func(block BlockID) []BlockID
	// Sealed reports whether all of block's predecessors are known.
	Sealed func(block BlockID) bool
	// NewIncompletePhi creates a placeholder phi at block with the given
	// number of (as yet unfilled) operand slots, and returns its handle.
	NewIncompletePhi func(block BlockID, numOperands int) ValueRef
	// SetPhiOperand fills operand index `idx` of phi with v.
	SetPhiOperand func(phi ValueRef, idx int, v ValueRef)
}

// Resolver performs on-demand SSA construction for one variable.
type Resolver struct {
	hooks Hooks

	// defs holds the current definition of the tracked variable at the
	// exit of each block (mirrors basicBlock.lastDefinitions).
	defs map[BlockID]ValueRef
	// incomplete holds, per unsealed block, the phi placeholder created
	// on first read (mirrors basicBlock.unknownValues).
	incomplete map[BlockID]ValueRef
}

// NewResolver returns a Resolver for one variable, using hooks to reach
// into the client's own CFG/value representation.
func NewResolver(hooks Hooks) *Resolver {
	return &Resolver{hooks: hooks, defs: make(map[BlockID]ValueRef), incomplete: make(map[BlockID]ValueRef)}
}

// DefineAt records that the tracked variable is defined as v at the exit
// of block (a plain, non-phi definition, or a already-filled phi).
func (r *Resolver) DefineAt(block BlockID, v ValueRef) {
	r.defs[block] = v
}

// ReadAt returns the tracked variable's value at the exit of block,
// inserting phis on demand as required by the Braun/Hack algorithm.
func (r *Resolver) ReadAt(block BlockID) ValueRef {
	if v, ok := r.defs[block]; ok {
		return v
	}
	if !r.hooks.Sealed(block) {
		// Incomplete CFG: park a placeholder and remember it, to be
		// filled once the block seals.
		preds := r.hooks.Preds(block)
		phi := r.hooks.NewIncompletePhi(block, len(preds))
		r.defs[block] = phi
		r.incomplete[block] = phi
		return phi
	}
	preds := r.hooks.Preds(block)
	if len(preds) == 1 {
		v := r.ReadAt(preds[0])
		r.defs[block] = v
		return v
	}
	phi := r.hooks.NewIncompletePhi(block, len(preds))
	r.defs[block] = phi
	for i, p := range preds {
		r.hooks.SetPhiOperand(phi, i, r.ReadAt(p))
	}
	return phi
}

// SealBlock declares that block's predecessor list is now final, filling
// any phi that ReadAt parked while the block was unsealed.
func (r *Resolver) SealBlock(block BlockID) {
	phi, ok := r.incomplete[block]
	if !ok {
		return
	}
	delete(r.incomplete, block)
	for i, p := range r.hooks.Preds(block) {
		r.hooks.SetPhiOperand(phi, i, r.ReadAt(p))
	}
}

// Trivial reports whether a phi's operand list reduces to a single
// value: every operand is either the phi itself (a self-reference) or
// equal to one common other value. If so it returns that value and
// true. Clients are responsible for rewriting uses of `self` to the
// returned value and for re-testing any phi that used `self` as an
// operand (the "recursively retest users" step of §4.2), since only the
// client's IR knows the def-use chains.
func Trivial(self ValueRef, operands []ValueRef) (unique ValueRef, ok bool) {
	unique = ValueRefInvalid
	for _, op := range operands {
		if op == self || op == unique {
			continue
		}
		if unique != ValueRefInvalid {
			return ValueRefInvalid, false
		}
		unique = op
	}
	if unique == ValueRefInvalid {
		// All operands were self-references: an undefined value.
		return ValueRefInvalid, true
	}
	return unique, true
}
