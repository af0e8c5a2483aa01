package ir

// Config carries the target chip's configuration honored by the core,
// per §6: which register-file totals to size the allocator/spiller
// against.
type Config struct {
	ChipClass ChipClass
	// NumWaves, if non-zero, overrides the occupancy target the spiller
	// aims for instead of deriving it from demand.
	NumWaves int
	// NumSGPRs/NumVGPRs are populated by the pipeline once allocation
	// completes (§6 "IR output").
	NumSGPRs, NumVGPRs int
}

// ChipClass selects the two hardware-specific totals named in §6: the
// total scalar register count and the max-addressable scalar index.
type ChipClass uint8

const (
	ChipClassUnknown ChipClass = iota
	ChipClassA // 512 total scalar regs, max-addressable index 104.
	ChipClassB // 800 total scalar regs, max-addressable index 102.
)

// TotalScalarRegs returns the chip's total scalar register count.
func (c ChipClass) TotalScalarRegs() int {
	if c == ChipClassB {
		return 800
	}
	return 512
}

// MaxAddressableScalarIndex returns the chip's max-addressable scalar index.
func (c ChipClass) MaxAddressableScalarIndex() int {
	if c == ChipClassB {
		return 102
	}
	return 104
}

// Program is the whole compiled function: an ordered list of blocks
// (index equals position, invariant 3), the fresh-Temp-id allocator
// (§5, "the Program's id allocator is the single source of fresh Temp
// ids and must be updated monotonically"), and the chosen occupancy.
type Program struct {
	Blocks []*Block

	Config *Config

	nextTempID TempID
	NumWaves   int
}

// NewProgram allocates an empty Program.
func NewProgram(cfg *Config) *Program {
	return &Program{Config: cfg, nextTempID: 1}
}

// NewTemp allocates a fresh Temp of the given register class.
func (p *Program) NewTemp(rc RC) Temp {
	id := p.nextTempID
	p.nextTempID++
	return Temp{ID: id, RC: rc}
}

// NewBlock allocates and appends a fresh Block, at the next position.
func (p *Program) NewBlock() *Block {
	blk := NewBlock(BlockID(len(p.Blocks)))
	p.Blocks = append(p.Blocks, blk)
	return blk
}

// Block returns the block at the given id, or nil if out of range.
func (p *Program) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(p.Blocks) {
		return nil
	}
	return p.Blocks[id]
}

// NumTemps returns the number of Temps allocated so far (an upper bound
// on TempID, used to size dense per-Temp arrays).
func (p *Program) NumTemps() int {
	return int(p.nextTempID)
}
