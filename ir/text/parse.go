package text

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/wavecc/shadercore/chip"
	"github.com/wavecc/shadercore/ir"
)

// opcodeByName is the reverse of ir.Opcode.String(), covering the
// opcodes a driver may legitimately hand in before the pipeline runs.
// The pipeline's own internal pseudo-opcodes (parallelcopy, spill,
// reload, the linear-vgpr/logical brackets) are intentionally absent:
// nothing upstream of stage D/F ever needs to author one by hand, and
// Format still prints them for a post-pipeline dump even though Parse
// does not accept them back.
var opcodeByName = map[string]ir.Opcode{
	"phi":                ir.OpPhi,
	"linear_phi":         ir.OpLinearPhi,
	"branch":             ir.OpBranch,
	"add":                ir.OpAdd,
	"sub":                ir.OpSub,
	"mul":                ir.OpMul,
	"and":                ir.OpAnd,
	"or":                 ir.OpOr,
	"xor":                ir.OpXor,
	"not":                ir.OpNot,
	"andn2":              ir.OpAndNot,
	"shl":                ir.OpShl,
	"shr":                ir.OpShr,
	"select":             ir.OpSelect,
	"read_exec":          ir.OpReadEXEC,
	"v_add_co_u32":       ir.OpAddCarry,
	"vector_construct":   ir.OpVectorConstruct,
	"swizzle":            ir.OpSwizzle,
	"ballot":             ir.OpBallot,
	"read_first_lane":    ir.OpReadFirstLane,
	"read_invocation":    ir.OpReadInvocation,
	"vote_any":           ir.OpVoteAny,
	"vote_all":           ir.OpVoteAll,
	"vote_ieq":           ir.OpVoteIEq,
	"vote_feq":           ir.OpVoteFEq,
	"reduce":             ir.OpReduce,
	"load_push_constant": ir.OpLoadPushConstant,
	"resource_index":     ir.OpResourceIndex,
	"clock_wave":         ir.OpClockWave,
	"load_ubo":           ir.OpLoadUBO,
	"load_interpolated":  ir.OpLoadInterpolated,
	"load_barycentric":   ir.OpLoadBarycentric,
	"texture_sample":     ir.OpTextureSample,
	"load_const":         ir.OpLoadConst,
	"undef":              ir.OpUndef,
	"deref":              ir.OpDeref,
}

var formatByName = map[string]ir.Format{
	"SOP1": ir.FormatSOP1, "SOP2": ir.FormatSOP2, "SOPK": ir.FormatSOPK, "SOPP": ir.FormatSOPP,
	"SOPC": ir.FormatSOPC, "SMEM": ir.FormatSMEM, "VOP1": ir.FormatVOP1, "VOP2": ir.FormatVOP2,
	"VOPC": ir.FormatVOPC, "VINTRP": ir.FormatVINTRP, "DS": ir.FormatDS, "MUBUF": ir.FormatMUBUF,
	"MIMG": ir.FormatMIMG, "EXP": ir.FormatEXP, "VOP3A": ir.FormatVOP3A,
}

// ParseError reports a lexical or grammatical mistake, with the line
// the scanner was on when it noticed.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

type parser struct {
	sc    scanner.Scanner
	tok   rune
	text  string
	temps map[int]ir.Temp
	p     *ir.Program
}

// Parse reads a textual dump back into an ir.Program, resolving forward
// references (a loop-header phi's back-edge operand, defined later in
// the file than it is used) by minting a Temp the first time a label is
// mentioned, whether as a definition or a use, and reusing it
// thereafter.
func Parse(r io.Reader) (*ir.Program, error) {
	ps := &parser{temps: map[int]ir.Temp{}}
	ps.sc.Init(r)
	ps.sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanComments | scanner.SkipComments
	ps.sc.Filename = "ir"
	ps.next()

	cfg := &ir.Config{}
	if err := ps.parseHeader(cfg); err != nil {
		return nil, err
	}
	ps.p = ir.NewProgram(cfg)

	for ps.tok != scanner.EOF {
		if err := ps.parseBlock(); err != nil {
			return nil, err
		}
	}

	return ps.p, nil
}

func (ps *parser) next() {
	ps.tok = ps.sc.Scan()
	ps.text = ps.sc.TokenText()
}

func (ps *parser) errf(format string, args ...interface{}) error {
	return &ParseError{Line: ps.sc.Line, Msg: fmt.Sprintf(format, args...)}
}

func (ps *parser) expectIdent(want string) error {
	if ps.tok != scanner.Ident || ps.text != want {
		return ps.errf("expected %q, got %q", want, ps.text)
	}
	ps.next()
	return nil
}

func (ps *parser) expectRune(want rune) error {
	if ps.tok != want {
		return ps.errf("expected %q, got %q", string(want), ps.text)
	}
	ps.next()
	return nil
}

func (ps *parser) parseHeader(cfg *ir.Config) error {
	for ps.tok == scanner.Ident {
		switch ps.text {
		case "chip_class":
			ps.next()
			switch ps.text {
			case "RDNA2":
				cfg.ChipClass = chip.RDNA2
			case "CDNA2":
				cfg.ChipClass = chip.CDNA2
			default:
				return ps.errf("unknown chip_class %q", ps.text)
			}
			ps.next()
		case "num_waves":
			ps.next()
			n, err := ps.parseInt()
			if err != nil {
				return err
			}
			cfg.NumWaves = n
		case "num_sgprs":
			ps.next()
			n, err := ps.parseInt()
			if err != nil {
				return err
			}
			cfg.NumSGPRs = n
		case "num_vgprs":
			ps.next()
			n, err := ps.parseInt()
			if err != nil {
				return err
			}
			cfg.NumVGPRs = n
		default:
			return nil
		}
	}
	return nil
}

func (ps *parser) parseInt() (int, error) {
	neg := false
	if ps.tok == '-' {
		neg = true
		ps.next()
	}
	if ps.tok != scanner.Int {
		return 0, ps.errf("expected integer, got %q", ps.text)
	}
	n, err := strconv.Atoi(ps.text)
	if err != nil {
		return 0, ps.errf("bad integer %q: %v", ps.text, err)
	}
	ps.next()
	if neg {
		n = -n
	}
	return n, nil
}

func (ps *parser) parseBlockID() (ir.BlockID, error) {
	if ps.tok != scanner.Ident || !strings.HasPrefix(ps.text, "bb") {
		return 0, ps.errf("expected block id (bbN), got %q", ps.text)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(ps.text, "bb"))
	if err != nil {
		return 0, ps.errf("bad block id %q: %v", ps.text, err)
	}
	ps.next()
	return ir.BlockID(n), nil
}

func (ps *parser) parseBlockIDList() ([]ir.BlockID, error) {
	var out []ir.BlockID
	for {
		id, err := ps.parseBlockID()
		if err != nil {
			return nil, err
		}
		out = append(out, id)
		if ps.tok != ',' {
			return out, nil
		}
		ps.next()
	}
}

func (ps *parser) parseBlock() error {
	if err := ps.expectIdent("block"); err != nil {
		return err
	}
	id, err := ps.parseBlockID()
	if err != nil {
		return err
	}
	blk := ps.p.NewBlock()
	if blk.ID != id {
		return ps.errf("block %s out of layout order, expected %s", id, blk.ID)
	}

	for ps.tok != scanner.EOF {
		if ps.tok == scanner.Ident && ps.text == "block" {
			return nil
		}
		if ps.tok == scanner.Ident {
			switch ps.text {
			case "preds_logical":
				ps.next()
				if blk.LogicalPreds, err = ps.parseBlockIDList(); err != nil {
					return err
				}
				continue
			case "preds_linear":
				ps.next()
				if blk.LinearPreds, err = ps.parseBlockIDList(); err != nil {
					return err
				}
				continue
			case "succs_logical":
				ps.next()
				if blk.LogicalSuccs, err = ps.parseBlockIDList(); err != nil {
					return err
				}
				continue
			case "succs_linear":
				ps.next()
				if blk.LinearSuccs, err = ps.parseBlockIDList(); err != nil {
					return err
				}
				continue
			}
		}
		if err := ps.parseInstr(blk); err != nil {
			return err
		}
	}
	return nil
}

func (ps *parser) parseInstr(blk *ir.Block) error {
	instr := &ir.Instruction{}

	if ps.tok == '%' {
		defs, err := ps.parseDefList()
		if err != nil {
			return err
		}
		instr.Defs = defs
		if err := ps.expectRune('='); err != nil {
			return err
		}
	}

	if ps.tok != scanner.Ident {
		return ps.errf("expected opcode, got %q", ps.text)
	}
	op, ok := opcodeByName[ps.text]
	if !ok {
		return ps.errf("unknown opcode %q", ps.text)
	}
	instr.Opcode = op
	ps.next()

	if ps.tok == '<' {
		ps.next()
		f, ok := formatByName[ps.text]
		if !ok {
			return ps.errf("unknown instruction format %q", ps.text)
		}
		instr.Format = f
		ps.next()
		if err := ps.expectRune('>'); err != nil {
			return err
		}
	}

	if instr.IsPhi() {
		if err := ps.parsePhiOperands(instr); err != nil {
			return err
		}
	} else {
		ops, err := ps.parseOperandListMaybeEmpty()
		if err != nil {
			return err
		}
		instr.Operands = ops
	}

	if ps.tok == '-' {
		ps.next()
		if err := ps.expectRune('>'); err != nil {
			return err
		}
		targets, err := ps.parseBlockIDList()
		if err != nil {
			return err
		}
		instr.Targets = targets
	}

	blk.AppendInstr(instr)
	return nil
}

func (ps *parser) parseOperandListMaybeEmpty() ([]ir.Operand, error) {
	if ps.tok != '%' && ps.tok != '#' && !(ps.tok == scanner.Ident && ps.text == "undef") {
		return nil, nil
	}
	var out []ir.Operand
	for {
		op, err := ps.parseOperand()
		if err != nil {
			return nil, err
		}
		out = append(out, op)
		if ps.tok != ',' {
			return out, nil
		}
		ps.next()
	}
}

func (ps *parser) parsePhiOperands(instr *ir.Instruction) error {
	if ps.tok != scanner.Ident || !strings.HasPrefix(ps.text, "bb") {
		return nil
	}
	for {
		pred, err := ps.parseBlockID()
		if err != nil {
			return err
		}
		if err := ps.expectRune(':'); err != nil {
			return err
		}
		op, err := ps.parseOperand()
		if err != nil {
			return err
		}
		instr.PredBlocks = append(instr.PredBlocks, pred)
		instr.Operands = append(instr.Operands, op)
		if ps.tok != ',' {
			return nil
		}
		ps.next()
	}
}

func (ps *parser) parseOperand() (ir.Operand, error) {
	switch {
	case ps.tok == '%':
		ps.next()
		t, err := ps.parseTempRef()
		if err != nil {
			return ir.Operand{}, err
		}
		op := ir.TempOperand(t)
		if ps.tok == '!' {
			op.SetKill(true)
			ps.next()
		}
		return op, nil
	case ps.tok == '#':
		ps.next()
		n, err := ps.parseInt()
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.InlineConstantOperand(uint32(int32(n))), nil
	case ps.tok == scanner.Ident && ps.text == "undef":
		ps.next()
		if err := ps.expectRune(':'); err != nil {
			return ir.Operand{}, err
		}
		rc, err := ps.parseRC()
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.UndefOperand(rc), nil
	default:
		return ir.Operand{}, ps.errf("expected operand, got %q", ps.text)
	}
}

func (ps *parser) parseDefList() ([]ir.Definition, error) {
	var out []ir.Definition
	for {
		if err := ps.expectRune('%'); err != nil {
			return nil, err
		}
		t, err := ps.parseTempRef()
		if err != nil {
			return nil, err
		}
		out = append(out, ir.NewDefinition(t))
		if ps.tok != ',' {
			return out, nil
		}
		ps.next()
	}
}

// parseTempRef parses "id:rc" (the '%' has already been consumed) and
// resolves it against the label table, minting a fresh ir.Temp the
// first time this label is seen so forward references (loop-carried phi
// operands) work regardless of definition order in the file.
func (ps *parser) parseTempRef() (ir.Temp, error) {
	if ps.tok != scanner.Int {
		return ir.Temp{}, ps.errf("expected temp id, got %q", ps.text)
	}
	label, err := strconv.Atoi(ps.text)
	if err != nil {
		return ir.Temp{}, ps.errf("bad temp id %q: %v", ps.text, err)
	}
	ps.next()
	if err := ps.expectRune(':'); err != nil {
		return ir.Temp{}, err
	}
	rc, err := ps.parseRC()
	if err != nil {
		return ir.Temp{}, err
	}
	if t, ok := ps.temps[label]; ok {
		return t, nil
	}
	t := ps.p.NewTemp(rc)
	ps.temps[label] = t
	return t, nil
}

func (ps *parser) parseRC() (ir.RC, error) {
	if ps.tok != scanner.Ident {
		return ir.RC{}, ps.errf("expected register class, got %q", ps.text)
	}
	bank, size, err := parseBankAndNumber(ps.text)
	if err != nil {
		return ir.RC{}, ps.errf("bad register class %q: %v", ps.text, err)
	}
	ps.next()
	return ir.RC{Bank: bank, Size: uint8(size)}, nil
}

// parseBankAndNumber splits a token like "s1", "v4", or "lv2" into its
// bank prefix and trailing digit count, the shared shape both register
// classes ("bank + size") and physical registers ("bank + index") use.
func parseBankAndNumber(tok string) (ir.Bank, int, error) {
	var prefix string
	switch {
	case strings.HasPrefix(tok, "lv"):
		prefix = "lv"
	case strings.HasPrefix(tok, "s"):
		prefix = "s"
	case strings.HasPrefix(tok, "v"):
		prefix = "v"
	default:
		return ir.BankInvalid, 0, fmt.Errorf("unrecognized bank prefix in %q", tok)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(tok, prefix))
	if err != nil {
		return ir.BankInvalid, 0, err
	}
	switch prefix {
	case "lv":
		return ir.BankLinearVGPR, n, nil
	case "s":
		return ir.BankScalar, n, nil
	default:
		return ir.BankVector, n, nil
	}
}
