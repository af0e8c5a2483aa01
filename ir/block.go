package ir

import "fmt"

// BlockID is the position of a Block within Program.Blocks; invariant 3
// requires block ids to equal both their position and their topological
// index along the linear CFG.
type BlockID int32

// BlockIDInvalid is the "no block" sentinel.
const BlockIDInvalid BlockID = -1

// String implements fmt.Stringer.
func (b BlockID) String() string { return fmt.Sprintf("bb%d", b) }

// Block holds instructions in order plus the two predecessor/successor
// views named by the data model: logical (structured source CFG, used
// for vector-value phis) and linear (divergence-aware CFG, used for
// scalar-value phis and EXEC bookkeeping).
type Block struct {
	ID BlockID

	Instrs []*Instruction

	LogicalPreds, LogicalSuccs []BlockID
	LinearPreds, LinearSuccs   []BlockID

	LoopNestDepth int
	LogicalIDom   BlockID
	LinearIDom    BlockID

	// VGPRDemand/SGPRDemand cache the block's maximum register-demand,
	// populated by the liveness pass (§4.3).
	VGPRDemand, SGPRDemand int

	// IsLoopHeader marks this block as a loop header. No pass in this
	// module sets it; the spiller and divergence analysis take loop
	// headers from ir.BuildLoopInfo instead.
	IsLoopHeader bool
}

// NewBlock allocates a Block with the given id.
func NewBlock(id BlockID) *Block {
	return &Block{ID: id, LogicalIDom: BlockIDInvalid, LinearIDom: BlockIDInvalid}
}

// AppendInstr appends an instruction to the end of the block's list.
func (b *Block) AppendInstr(instr *Instruction) {
	b.Instrs = append(b.Instrs, instr)
}

// InsertBefore inserts instr immediately before the instruction at index i.
func (b *Block) InsertBefore(i int, instr *Instruction) {
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[i+1:], b.Instrs[i:])
	b.Instrs[i] = instr
}

// IndexOf returns the position of instr in this block's list, or -1.
func (b *Block) IndexOf(instr *Instruction) int {
	for i, in := range b.Instrs {
		if in == instr {
			return i
		}
	}
	return -1
}

// Terminator returns the last instruction of the block, if any.
func (b *Block) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

// Phis returns the leading run of phi/linear_phi pseudo-instructions.
func (b *Block) Phis() []*Instruction {
	var out []*Instruction
	for _, in := range b.Instrs {
		if in.IsPhi() {
			out = append(out, in)
		} else {
			break
		}
	}
	return out
}

// IndexOfOpcode returns the index of the first instruction with the
// given opcode at or after `from`, or -1.
func (b *Block) IndexOfOpcode(op Opcode, from int) int {
	for i := from; i < len(b.Instrs); i++ {
		if b.Instrs[i].Opcode == op {
			return i
		}
	}
	return -1
}
