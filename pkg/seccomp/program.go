package seccomp

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// Offsets into struct seccomp_data (include/uapi/linux/seccomp.h):
//
//	struct seccomp_data {
//		int nr;
//		__u32 arch;
//		__u64 instruction_pointer;
//		__u64 args[6];
//	};
//
// Arguments are 64-bit but classic BPF compares 32-bit words, so every
// comparison operates on the low and high halves separately. Offsets assume a
// little-endian architecture, which holds for every audit arch this package
// supports.
const (
	dataOffsetNR   = 0
	dataOffsetArch = 4
	dataOffsetArgs = 16
)

// x32SyscallBit marks x32 ABI syscall numbers on amd64. Filters reject them
// so that a number match cannot be aliased through the x32 ABI.
const x32SyscallBit = 0x40000000

// maxInstructions is the kernel's BPF_MAXINSNS limit on one filter program.
const maxInstructions = 4096

func argOffsetLow(i int) uint32  { return dataOffsetArgs + uint32(i)*8 }
func argOffsetHigh(i int) uint32 { return argOffsetLow(i) + 4 }

// program accumulates the BPF instructions for one filter.
type program struct {
	ins      []bpf.Instruction
	matchRet uint32
	err      error
}

// failRef marks a jump whose skip must be patched to the end of the
// enclosing rule fragment.
type failRef struct {
	idx       int
	skipFalse bool
}

func (p *program) stmt(ins bpf.Instruction) {
	p.ins = append(p.ins, ins)
}

func (p *program) loadArgLow(i int) {
	p.stmt(bpf.LoadAbsolute{Off: argOffsetLow(i), Size: 4})
}

func (p *program) loadArgHigh(i int) {
	p.stmt(bpf.LoadAbsolute{Off: argOffsetHigh(i), Size: 4})
}

// jumpFail emits a conditional jump whose failing edge is patched later to
// the end of the rule fragment. When cond holds the program falls through.
func (p *program) jumpFail(cond bpf.JumpTest, val uint32, fails *[]failRef) {
	*fails = append(*fails, failRef{idx: len(p.ins), skipFalse: true})
	p.stmt(bpf.JumpIf{Cond: cond, Val: val})
}

// jumpFailIf is like jumpFail but fails when cond holds.
func (p *program) jumpFailIf(cond bpf.JumpTest, val uint32, fails *[]failRef) {
	*fails = append(*fails, failRef{idx: len(p.ins), skipFalse: false})
	p.stmt(bpf.JumpIf{Cond: cond, Val: val})
}

// patch rewrites the recorded failing edges to jump to end.
func (p *program) patch(fails []failRef, end int) {
	for _, f := range fails {
		skip := end - f.idx - 1
		if skip < 0 || skip > 255 {
			p.err = fmt.Errorf("seccomp: rule fragment too large for a conditional jump (%d instructions)", skip)
			return
		}
		j := p.ins[f.idx].(bpf.JumpIf)
		if f.skipFalse {
			j.SkipFalse = uint8(skip)
		} else {
			j.SkipTrue = uint8(skip)
		}
		p.ins[f.idx] = j
	}
}

func (MatchAll) render(p *program) {
	p.stmt(bpf.RetConstant{Val: p.matchRet})
}

func (or Or) render(p *program) {
	// Branches are self-contained: a mismatching branch falls through to
	// the next one, and past the last one out of the fragment.
	for _, branch := range or {
		branch.render(p)
	}
}

func (pa PerArg) render(p *program) {
	var fails []failRef
	for i := range pa {
		pa.renderCond(p, i, &fails)
	}
	p.stmt(bpf.RetConstant{Val: p.matchRet})
	p.patch(fails, len(p.ins))
}

func (pa PerArg) renderCond(p *program, i int, fails *[]failRef) {
	switch c := normalizeCond(pa[i]).(type) {
	case AnyValue:
		// no check

	case EqualTo:
		hi, lo := uint32(uint64(c)>>32), uint32(uint64(c))
		p.loadArgLow(i)
		p.jumpFail(bpf.JumpEqual, lo, fails)
		p.loadArgHigh(i)
		p.jumpFail(bpf.JumpEqual, hi, fails)

	case NotEqual:
		hi, lo := uint32(uint64(c)>>32), uint32(uint64(c))
		p.loadArgLow(i)
		// Low halves differ: the condition already holds.
		p.stmt(bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: lo, SkipTrue: 2})
		p.loadArgHigh(i)
		p.jumpFailIf(bpf.JumpEqual, hi, fails)

	case GreaterThan:
		hi, lo := uint32(uint64(c)>>32), uint32(uint64(c))
		p.loadArgHigh(i)
		p.stmt(bpf.JumpIf{Cond: bpf.JumpGreaterThan, Val: hi, SkipTrue: 3})
		p.jumpFail(bpf.JumpEqual, hi, fails)
		p.loadArgLow(i)
		p.jumpFail(bpf.JumpGreaterThan, lo, fails)

	case GreaterThanOrEqual:
		hi, lo := uint32(uint64(c)>>32), uint32(uint64(c))
		p.loadArgHigh(i)
		p.stmt(bpf.JumpIf{Cond: bpf.JumpGreaterThan, Val: hi, SkipTrue: 3})
		p.jumpFail(bpf.JumpEqual, hi, fails)
		p.loadArgLow(i)
		p.jumpFail(bpf.JumpGreaterOrEqual, lo, fails)

	case LessThan:
		hi, lo := uint32(uint64(c)>>32), uint32(uint64(c))
		p.loadArgHigh(i)
		p.jumpFailIf(bpf.JumpGreaterThan, hi, fails)
		p.stmt(bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: hi, SkipTrue: 2})
		p.loadArgLow(i)
		p.jumpFail(bpf.JumpLessThan, lo, fails)

	case LessThanOrEqual:
		hi, lo := uint32(uint64(c)>>32), uint32(uint64(c))
		p.loadArgHigh(i)
		p.jumpFailIf(bpf.JumpGreaterThan, hi, fails)
		p.stmt(bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: hi, SkipTrue: 2})
		p.loadArgLow(i)
		p.jumpFail(bpf.JumpLessOrEqual, lo, fails)

	case maskedEqual:
		valHi, valLo := uint32(c.value>>32), uint32(c.value)
		maskHi, maskLo := uint32(c.mask>>32), uint32(c.mask)
		p.loadArgLow(i)
		p.stmt(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: maskLo})
		p.jumpFail(bpf.JumpEqual, valLo, fails)
		p.loadArgHigh(i)
		p.stmt(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: maskHi})
		p.jumpFail(bpf.JumpEqual, valHi, fails)

	default:
		p.err = fmt.Errorf("seccomp: unknown argument condition %T", pa[i])
	}
}

// BuildProgram compiles the rule map into a BPF filter program. The program
// verifies the audit architecture, matches syscall numbers in ascending
// order, evaluates argument conditions and falls back to defaultAction for
// anything unmatched. denyX32 additionally rejects x32 ABI syscall numbers
// and should be set on amd64.
//
// The output is deterministic for equal rule maps regardless of map
// iteration order.
func BuildProgram(rules SyscallRules, defaultAction Action, auditArch uint32, denyX32 bool) ([]bpf.Instruction, error) {
	if defaultAction.Action() == ActionAllow || defaultAction.Action() == 0 {
		return nil, fmt.Errorf("seccomp: invalid default action %v", defaultAction)
	}
	badArch := ActionKillProcess.KernelReturn()

	p := &program{matchRet: ActionAllow.KernelReturn()}
	p.stmt(bpf.LoadAbsolute{Off: dataOffsetArch, Size: 4})
	p.stmt(bpf.JumpIf{Cond: bpf.JumpEqual, Val: auditArch, SkipTrue: 1})
	p.stmt(bpf.RetConstant{Val: badArch})
	if denyX32 {
		p.stmt(bpf.LoadAbsolute{Off: dataOffsetNR, Size: 4})
		p.stmt(bpf.JumpIf{Cond: bpf.JumpBitsNotSet, Val: x32SyscallBit, SkipTrue: 1})
		p.stmt(bpf.RetConstant{Val: badArch})
	}

	for _, nr := range rules.Sysnos() {
		body := &program{matchRet: p.matchRet}
		rules[nr].render(body)
		if body.err != nil {
			return nil, body.err
		}
		if len(body.ins) > 255 {
			return nil, fmt.Errorf("seccomp: rule for syscall %d compiles to %d instructions, limit is 255", nr, len(body.ins))
		}
		p.stmt(bpf.LoadAbsolute{Off: dataOffsetNR, Size: 4})
		p.stmt(bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(nr), SkipFalse: uint8(len(body.ins))})
		p.ins = append(p.ins, body.ins...)
	}

	p.stmt(bpf.RetConstant{Val: defaultAction.KernelReturn()})
	if len(p.ins) > maxInstructions {
		return nil, fmt.Errorf("seccomp: filter program has %d instructions, kernel limit is %d", len(p.ins), maxInstructions)
	}
	return p.ins, nil
}
