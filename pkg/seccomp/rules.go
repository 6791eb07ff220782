package seccomp

import (
	"fmt"
	"sort"
	"strings"
)

// SyscallRules maps syscall numbers to their allow-conditions. Syscalls
// absent from the map hit the filter's default action.
type SyscallRules map[int]SyscallRule

// NewSyscallRules returns an empty rule map.
func NewSyscallRules() SyscallRules {
	return make(SyscallRules)
}

// AddRule inserts a rule for a syscall, OR-combining with any existing rule.
func (sr SyscallRules) AddRule(sysno int, r SyscallRule) {
	if cur, ok := sr[sysno]; ok {
		sr[sysno] = MergeRules(cur, r)
	} else {
		sr[sysno] = r
	}
}

// Merge folds other into sr, OR-combining rules for shared syscalls.
func (sr SyscallRules) Merge(other SyscallRules) {
	for sysno, r := range other {
		sr.AddRule(sysno, r)
	}
}

// Sysnos returns the syscall numbers in ascending order.
func (sr SyscallRules) Sysnos() []int {
	nrs := make([]int, 0, len(sr))
	for nr := range sr {
		nrs = append(nrs, nr)
	}
	sort.Ints(nrs)
	return nrs
}

// String renders the rules one syscall per line in ascending order.
func (sr SyscallRules) String() string {
	if len(sr) == 0 {
		return "(no rules)"
	}
	var sb strings.Builder
	for _, nr := range sr.Sysnos() {
		fmt.Fprintf(&sb, "syscall %d: %v\n", nr, sr[nr])
	}
	return strings.TrimSpace(sb.String())
}
