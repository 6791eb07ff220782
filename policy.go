package extrasafe

import (
	"sort"

	"github.com/Kijewski/go-extrasafe/pkg/seccomp"
)

// CompiledPolicy is the merged, conflict-resolved mapping from syscall to
// allow-condition produced by SafetyContext.Compile. It is immutable and
// safe to inspect from any goroutine.
type CompiledPolicy struct {
	defaultAction seccomp.Action
	rules         seccomp.SyscallRules
	names         map[int]string
}

// DefaultAction returns the action taken for syscalls outside the policy.
func (p *CompiledPolicy) DefaultAction() seccomp.Action {
	return p.defaultAction
}

// AllowedSyscalls returns the names of all syscalls with an allow rule,
// sorted alphabetically.
func (p *CompiledPolicy) AllowedSyscalls() []string {
	out := make([]string, 0, len(p.names))
	for _, name := range p.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RuleFor returns the merged allow-condition for a syscall name, if any.
func (p *CompiledPolicy) RuleFor(name string) (seccomp.SyscallRule, bool) {
	nr, ok := seccomp.SyscallNumber(name)
	if !ok {
		return nil, false
	}
	r, ok := p.rules[nr]
	return r, ok
}

// assemble compiles the policy into a loadable filter.
func (p *CompiledPolicy) assemble() (seccomp.Filter, error) {
	auditArch, denyX32, err := seccomp.NativeAuditArch()
	if err != nil {
		return nil, &UnsupportedPlatformError{Cause: err}
	}
	prog, err := seccomp.BuildProgram(p.rules, p.defaultAction, auditArch, denyX32)
	if err != nil {
		return nil, &InstallationFailedError{Cause: err}
	}
	filter, err := seccomp.Assemble(prog)
	if err != nil {
		return nil, &InstallationFailedError{Cause: err}
	}
	return filter, nil
}
