package builtins

import "github.com/Kijewski/go-extrasafe/pkg/seccomp"

// CLONE_THREAD from the Linux ABI; same value on every architecture.
const cloneThread = 0x10000

// forkExecSyscalls is the fixed allow-list of ForkAndExec: spawning child
// processes, replacing the process image and reaping children.
var forkExecSyscalls = []string{
	"fork", "vfork", "clone", "clone3",
	"execve", "execveat",
	"wait4", "waitid",
}

// ForkAndExec allows spawning and executing new processes. Think before
// enabling this: an executed program does inherit the seccomp filter, but a
// permissive policy plus exec defeats most of the point of sandboxing.
//
// ForkAndExec requires BasicCapabilities.
type ForkAndExec struct{}

// Name implements extrasafe.RuleSet.
func (ForkAndExec) Name() string { return "ForkAndExec" }

// RequiredRuleSets implements extrasafe.RuleSet.
func (ForkAndExec) RequiredRuleSets() []string { return []string{"BasicCapabilities"} }

// Rules implements extrasafe.RuleSet.
func (ForkAndExec) Rules() map[string]seccomp.SyscallRule {
	m := make(ruleMap, len(forkExecSyscalls))
	m.allow(forkExecSyscalls...)
	return m
}

// Threads allows creating threads and sleeping. A new Threads allows
// nothing.
//
// Threads requires BasicCapabilities.
type Threads struct {
	rules ruleMap
}

// NewThreads returns a Threads profile that allows nothing.
func NewThreads() *Threads {
	return &Threads{rules: make(ruleMap)}
}

// AllowCreate allows clone calls that carry CLONE_THREAD in the flags
// argument, i.e. new threads but not new processes. clone3 passes its flags
// in a struct that seccomp cannot inspect and stays denied; runtimes fall
// back to clone when clone3 fails with ENOSYS, so an errno default action
// pairs well with this rule.
func (t *Threads) AllowCreate() *Threads {
	t.rules.add("clone", seccomp.PerArg{
		seccomp.MaskedEqual(cloneThread, cloneThread),
	})
	return t
}

// AllowSleep allows nanosleep and clock_nanosleep.
func (t *Threads) AllowSleep() *Threads {
	t.rules.allow("nanosleep", "clock_nanosleep")
	return t
}

// Name implements extrasafe.RuleSet.
func (t *Threads) Name() string { return "Threads" }

// RequiredRuleSets implements extrasafe.RuleSet.
func (t *Threads) RequiredRuleSets() []string { return []string{"BasicCapabilities"} }

// Rules implements extrasafe.RuleSet.
func (t *Threads) Rules() map[string]seccomp.SyscallRule {
	return t.rules.clone()
}
