package builtins

import "github.com/Kijewski/go-extrasafe/pkg/seccomp"

// basicSyscalls is the fixed allow-list of BasicCapabilities. It covers what
// practically every program and language runtime needs to keep running:
// memory management, futexes, signal handling, process information and
// clean exit. It deliberately contains no file, network or process-creation
// syscalls.
var basicSyscalls = []string{
	// memory
	"brk", "mmap", "mmap2", "munmap", "mremap", "mprotect", "madvise",
	// synchronization
	"futex", "membarrier", "rseq",
	// signal handling, including the self-directed signals runtimes use
	// for preemption
	"rt_sigaction", "rt_sigprocmask", "rt_sigreturn", "sigaltstack",
	"tgkill", "restart_syscall",
	// process and thread information
	"getpid", "gettid", "getppid",
	"getuid", "geteuid", "getgid", "getegid",
	// scheduling
	"sched_yield", "sched_getaffinity",
	// runtime bookkeeping
	"set_tid_address", "set_robust_list", "arch_prctl", "getrandom",
	// exit
	"exit", "exit_group",
}

// BasicCapabilities allows the syscalls practically every program needs.
// The list is fixed; it is the usual base layer other profiles build on.
type BasicCapabilities struct{}

// Name implements extrasafe.RuleSet.
func (BasicCapabilities) Name() string { return "BasicCapabilities" }

// RequiredRuleSets implements extrasafe.RuleSet.
func (BasicCapabilities) RequiredRuleSets() []string { return nil }

// Rules implements extrasafe.RuleSet.
func (BasicCapabilities) Rules() map[string]seccomp.SyscallRule {
	m := make(ruleMap, len(basicSyscalls))
	m.allow(basicSyscalls...)
	return m
}
