// Package builtins provides ready-made rule sets, each representing one
// capability. Profiles are plain values: constructing or configuring one
// never touches the kernel, and every profile documents the exact syscalls
// it permits. That list is a compatibility contract.
//
// Rule values in this package use the Linux syscall ABI shared by amd64,
// 386, arm and arm64 (flag bits that differ between those architectures are
// not used in any condition).
package builtins

import "github.com/Kijewski/go-extrasafe/pkg/seccomp"

// ruleMap collects the allow-conditions of one profile, OR-combining
// multiple rules for the same syscall.
type ruleMap map[string]seccomp.SyscallRule

func (m ruleMap) add(name string, r seccomp.SyscallRule) {
	if cur, ok := m[name]; ok {
		m[name] = seccomp.MergeRules(cur, r)
	} else {
		m[name] = r
	}
}

func (m ruleMap) allow(names ...string) {
	for _, name := range names {
		m.add(name, seccomp.MatchAll{})
	}
}

func (m ruleMap) clone() map[string]seccomp.SyscallRule {
	out := make(map[string]seccomp.SyscallRule, len(m))
	for name, r := range m {
		out[name] = r
	}
	return out
}
