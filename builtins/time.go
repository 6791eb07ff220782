package builtins

import "github.com/Kijewski/go-extrasafe/pkg/seccomp"

// gettimeSyscalls are the clock reading syscalls. Note that on most systems
// the vDSO answers these without entering the kernel, so a missing Time
// profile often goes unnoticed until the vDSO falls back to the real
// syscall.
var gettimeSyscalls = []string{
	"clock_gettime", "clock_getres", "gettimeofday", "time",
}

// Time allows reading clocks. A new Time allows nothing.
type Time struct {
	rules ruleMap
}

// NewTime returns a Time profile that allows nothing.
func NewTime() *Time {
	return &Time{rules: make(ruleMap)}
}

// AllowGettime allows clock_gettime, clock_getres, gettimeofday and time.
func (t *Time) AllowGettime() *Time {
	t.rules.allow(gettimeSyscalls...)
	return t
}

// Name implements extrasafe.RuleSet.
func (t *Time) Name() string { return "Time" }

// RequiredRuleSets implements extrasafe.RuleSet.
func (t *Time) RequiredRuleSets() []string { return nil }

// Rules implements extrasafe.RuleSet.
func (t *Time) Rules() map[string]seccomp.SyscallRule {
	return t.rules.clone()
}
