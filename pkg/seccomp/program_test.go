package seccomp

import (
	"reflect"
	"testing"

	"golang.org/x/net/bpf"
)

const (
	testArch  = uint32(auditArchX86_64)
	wrongArch = uint32(auditArchAArch64)
)

// seccompData mirrors the kernel's struct seccomp_data for the evaluator.
type seccompData struct {
	nr   uint32
	arch uint32
	args [6]uint64
}

func (d seccompData) word(off uint32) uint32 {
	switch {
	case off == dataOffsetNR:
		return d.nr
	case off == dataOffsetArch:
		return d.arch
	case off >= dataOffsetArgs:
		i := int(off-dataOffsetArgs) / 8
		if (off-dataOffsetArgs)%8 == 0 {
			return uint32(d.args[i])
		}
		return uint32(d.args[i] >> 32)
	}
	return 0
}

// evaluate runs a filter program the way the kernel's classic BPF
// interpreter would, over the subset of instructions BuildProgram emits.
func evaluate(t *testing.T, prog []bpf.Instruction, data seccompData) uint32 {
	t.Helper()
	var a uint32
	for pc := 0; pc < len(prog); pc++ {
		switch ins := prog[pc].(type) {
		case bpf.LoadAbsolute:
			a = data.word(ins.Off)
		case bpf.ALUOpConstant:
			if ins.Op != bpf.ALUOpAnd {
				t.Fatalf("unexpected ALU op %v at %d", ins.Op, pc)
			}
			a &= ins.Val
		case bpf.RetConstant:
			return ins.Val
		case bpf.JumpIf:
			var cond bool
			switch ins.Cond {
			case bpf.JumpEqual:
				cond = a == ins.Val
			case bpf.JumpNotEqual:
				cond = a != ins.Val
			case bpf.JumpGreaterThan:
				cond = a > ins.Val
			case bpf.JumpGreaterOrEqual:
				cond = a >= ins.Val
			case bpf.JumpLessThan:
				cond = a < ins.Val
			case bpf.JumpLessOrEqual:
				cond = a <= ins.Val
			case bpf.JumpBitsSet:
				cond = a&ins.Val != 0
			case bpf.JumpBitsNotSet:
				cond = a&ins.Val == 0
			default:
				t.Fatalf("unexpected jump condition %v at %d", ins.Cond, pc)
			}
			if cond {
				pc += int(ins.SkipTrue)
			} else {
				pc += int(ins.SkipFalse)
			}
		default:
			t.Fatalf("unexpected instruction %T at %d", ins, pc)
		}
	}
	t.Fatal("program fell off the end")
	return 0
}

func mustBuild(t *testing.T, rules SyscallRules, defaultAction Action) []bpf.Instruction {
	t.Helper()
	prog, err := BuildProgram(rules, defaultAction, testArch, true)
	if err != nil {
		t.Fatalf("BuildProgram failed: %v", err)
	}
	// The program must also assemble: this validates all jump offsets.
	if _, err := Assemble(prog); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return prog
}

func TestBuildProgramDefaultDeny(t *testing.T) {
	rules := SyscallRules{
		0: MatchAll{},
		3: MatchAll{},
	}
	deny := ActionErrno.WithReturnCode(1)
	prog := mustBuild(t, rules, deny)

	if got := evaluate(t, prog, seccompData{nr: 0, arch: testArch}); got != retAllow {
		t.Errorf("allowed syscall: got %#x, want allow", got)
	}
	if got := evaluate(t, prog, seccompData{nr: 3, arch: testArch}); got != retAllow {
		t.Errorf("allowed syscall: got %#x, want allow", got)
	}
	if got := evaluate(t, prog, seccompData{nr: 2, arch: testArch}); got != deny.KernelReturn() {
		t.Errorf("denied syscall: got %#x, want %#x", got, deny.KernelReturn())
	}
}

func TestBuildProgramBadArch(t *testing.T) {
	prog := mustBuild(t, SyscallRules{0: MatchAll{}}, ActionKillProcess)
	if got := evaluate(t, prog, seccompData{nr: 0, arch: wrongArch}); got != retKillProcess {
		t.Errorf("foreign arch: got %#x, want kill_process", got)
	}
}

func TestBuildProgramDeniesX32(t *testing.T) {
	prog := mustBuild(t, SyscallRules{0: MatchAll{}}, ActionKillThread)
	if got := evaluate(t, prog, seccompData{nr: x32SyscallBit | 0, arch: testArch}); got != retKillProcess {
		t.Errorf("x32 syscall number: got %#x, want kill_process", got)
	}
}

func TestBuildProgramArgConditions(t *testing.T) {
	allow := uint32(retAllow)
	deny := ActionKillProcess.KernelReturn()

	cases := []struct {
		name string
		rule SyscallRule
		args [6]uint64
		want uint32
	}{
		{"equalMatch", PerArg{EqualTo(42)}, [6]uint64{42}, allow},
		{"equalMismatch", PerArg{EqualTo(42)}, [6]uint64{41}, deny},
		{"equalHighWordMismatch", PerArg{EqualTo(42)}, [6]uint64{42 | 1<<32}, deny},
		{"equal64Bit", PerArg{EqualTo(1<<32 | 2)}, [6]uint64{1<<32 | 2}, allow},
		{"equal64BitLowOnly", PerArg{EqualTo(1<<32 | 2)}, [6]uint64{2}, deny},

		{"notEqualDiffLow", PerArg{NotEqual(5)}, [6]uint64{6}, allow},
		{"notEqualDiffHigh", PerArg{NotEqual(5)}, [6]uint64{5 | 1<<32}, allow},
		{"notEqualSame", PerArg{NotEqual(5)}, [6]uint64{5}, deny},

		{"greaterThanAbove", PerArg{GreaterThan(10)}, [6]uint64{11}, allow},
		{"greaterThanEqual", PerArg{GreaterThan(10)}, [6]uint64{10}, deny},
		{"greaterThanHighWord", PerArg{GreaterThan(10)}, [6]uint64{1 << 32}, allow},
		{"greaterOrEqualEqual", PerArg{GreaterThanOrEqual(10)}, [6]uint64{10}, allow},
		{"greaterOrEqualBelow", PerArg{GreaterThanOrEqual(10)}, [6]uint64{9}, deny},

		{"lessThanBelow", PerArg{LessThan(10)}, [6]uint64{9}, allow},
		{"lessThanEqual", PerArg{LessThan(10)}, [6]uint64{10}, deny},
		{"lessThanHighWord", PerArg{LessThan(1 << 33)}, [6]uint64{1 << 32}, allow},
		{"lessOrEqualEqual", PerArg{LessThanOrEqual(10)}, [6]uint64{10}, allow},
		{"lessOrEqualAbove", PerArg{LessThanOrEqual(10)}, [6]uint64{11}, deny},

		{"maskedZeroFlags", PerArg{nil, MaskedEqual(0x6c3, 0)}, [6]uint64{0, 0}, allow},
		{"maskedBitsOutsideMask", PerArg{nil, MaskedEqual(0x6c3, 0)}, [6]uint64{0, 0x80000}, allow},
		{"maskedForbiddenBit", PerArg{nil, MaskedEqual(0x6c3, 0)}, [6]uint64{0, 0x1}, deny},
		{"maskedHighWord", PerArg{MaskedEqual(1<<33, 1<<33)}, [6]uint64{1 << 33}, allow},
		{"maskedHighWordMissing", PerArg{MaskedEqual(1<<33, 1<<33)}, [6]uint64{1 << 32}, deny},

		{"andAcrossArgs", PerArg{EqualTo(1), EqualTo(2)}, [6]uint64{1, 2}, allow},
		{"andAcrossArgsPartial", PerArg{EqualTo(1), EqualTo(2)}, [6]uint64{1, 3}, deny},

		{"orFirstBranch", Or{PerArg{EqualTo(1)}, PerArg{EqualTo(2)}}, [6]uint64{1}, allow},
		{"orSecondBranch", Or{PerArg{EqualTo(1)}, PerArg{EqualTo(2)}}, [6]uint64{2}, allow},
		{"orNoBranch", Or{PerArg{EqualTo(1)}, PerArg{EqualTo(2)}}, [6]uint64{3}, deny},
		{"lastArgSlot", PerArg{nil, nil, nil, nil, nil, EqualTo(7)}, [6]uint64{0, 0, 0, 0, 0, 7}, allow},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			prog := mustBuild(t, SyscallRules{1: c.rule}, ActionKillProcess)
			got := evaluate(t, prog, seccompData{nr: 1, arch: testArch, args: c.args})
			if got != c.want {
				t.Errorf("got %#x, want %#x", got, c.want)
			}
			// The conditions only apply to the rule's own syscall.
			if got := evaluate(t, prog, seccompData{nr: 2, arch: testArch, args: c.args}); got != deny {
				t.Errorf("other syscall leaked through: got %#x", got)
			}
		})
	}
}

func TestBuildProgramDeterministic(t *testing.T) {
	a := NewSyscallRules()
	b := NewSyscallRules()
	nrs := []int{7, 3, 250, 0, 41}
	for _, nr := range nrs {
		a.AddRule(nr, PerArg{EqualTo(uint64(nr))})
	}
	for i := len(nrs) - 1; i >= 0; i-- {
		b.AddRule(nrs[i], PerArg{EqualTo(uint64(nrs[i]))})
	}
	progA, err := BuildProgram(a, ActionKillProcess, testArch, true)
	if err != nil {
		t.Fatal(err)
	}
	progB, err := BuildProgram(b, ActionKillProcess, testArch, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(progA, progB) {
		t.Error("programs built from equal rule maps differ")
	}
}

func TestBuildProgramRejectsAllowDefault(t *testing.T) {
	if _, err := BuildProgram(SyscallRules{0: MatchAll{}}, ActionAllow, testArch, false); err == nil {
		t.Error("an allow default action must be rejected")
	}
}

func TestBuildProgramTooLarge(t *testing.T) {
	rules := NewSyscallRules()
	for nr := 0; nr < 1400; nr++ {
		rules.AddRule(nr, MatchAll{})
	}
	if _, err := BuildProgram(rules, ActionKillProcess, testArch, false); err == nil {
		t.Error("oversized program must be rejected")
	}
}

func TestActionReturnCodes(t *testing.T) {
	a := ActionErrno.WithReturnCode(38) // ENOSYS
	if a.Action() != ActionErrno {
		t.Errorf("base action lost: %v", a.Action())
	}
	if a.ReturnCode() != 38 {
		t.Errorf("return code lost: %d", a.ReturnCode())
	}
	if got := a.KernelReturn(); got != retErrno|38 {
		t.Errorf("kernel return = %#x, want %#x", got, retErrno|38)
	}
	if got := ActionAllow.KernelReturn(); got != retAllow {
		t.Errorf("allow = %#x", got)
	}
	if got := ActionKillProcess.KernelReturn(); got != retKillProcess {
		t.Errorf("kill_process = %#x", got)
	}
}

func TestSyscallNameRoundTrip(t *testing.T) {
	nr, ok := SyscallNumber("read")
	if !ok {
		t.Skip("no syscall table for this architecture")
	}
	name, ok := SyscallName(nr)
	if !ok || name != "read" {
		t.Errorf("round trip gave %q (%v)", name, ok)
	}
	if _, ok := SyscallNumber("definitely_not_a_syscall"); ok {
		t.Error("unknown name resolved")
	}
}

// BenchmarkBuildProgram is on the order of tens of microseconds per filter.
func BenchmarkBuildProgram(b *testing.B) {
	rules := NewSyscallRules()
	for nr := 0; nr < 64; nr++ {
		rules.AddRule(nr, MatchAll{})
	}
	rules.AddRule(257, PerArg{nil, nil, MaskedEqual(0x6c3, 0)})
	for i := 0; i < b.N; i++ {
		prog, _ := BuildProgram(rules, ActionKillProcess, testArch, true)
		_, _ = Assemble(prog)
	}
}
