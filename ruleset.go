package extrasafe

import "github.com/Kijewski/go-extrasafe/pkg/seccomp"

// RuleSet is a named bundle of syscall allow-rules representing one
// capability. Implementations are read-only value objects: constructing or
// reading one never touches the kernel, and the same RuleSet may be enabled
// on any number of SafetyContexts.
type RuleSet interface {
	// Name identifies the rule set. Enabling two rule sets with the same
	// name and different rules on one context is an error.
	Name() string

	// Rules returns the allow-conditions keyed by syscall name. Names
	// unknown to the running architecture are skipped at compile time:
	// under default-deny an unresolvable name can only fail closed.
	Rules() map[string]seccomp.SyscallRule

	// RequiredRuleSets lists names of rule sets that must already be
	// enabled on a context before this one.
	RequiredRuleSets() []string
}

func cloneRules(rules map[string]seccomp.SyscallRule) map[string]seccomp.SyscallRule {
	out := make(map[string]seccomp.SyscallRule, len(rules))
	for name, r := range rules {
		out[name] = r
	}
	return out
}

func sameRules(a, b map[string]seccomp.SyscallRule) bool {
	if len(a) != len(b) {
		return false
	}
	for name, ra := range a {
		rb, ok := b[name]
		if !ok || !seccomp.SameRule(ra, rb) {
			return false
		}
	}
	return true
}
