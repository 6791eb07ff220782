package extrasafe

import "fmt"

// MissingDependencyError reports a rule set that was enabled before a rule
// set it declares as required.
type MissingDependencyError struct {
	RuleSet string
	Missing string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("rule set %q requires %q to be enabled first", e.RuleSet, e.Missing)
}

// ConflictingRuleError reports two rule sets that impose different
// conditional constraints on the same syscall. Conflict detection compares
// predicate trees structurally, so rules that are equivalent but written
// differently are also reported as conflicting.
type ConflictingRuleError struct {
	Syscall  string
	Previous string
	Added    string
}

func (e *ConflictingRuleError) Error() string {
	return fmt.Sprintf("rule sets %q and %q place conflicting conditions on syscall %q", e.Previous, e.Added, e.Syscall)
}

// RedefinedRuleSetError reports a rule set enabled under a name that was
// already enabled with different content.
type RedefinedRuleSetError struct {
	Name string
}

func (e *RedefinedRuleSetError) Error() string {
	return fmt.Sprintf("rule set %q was already enabled with different rules", e.Name)
}

// UnsupportedPlatformError reports that seccomp filtering is unavailable on
// the current platform or kernel.
type UnsupportedPlatformError struct {
	Cause error
}

func (e *UnsupportedPlatformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("seccomp filtering is not supported: %v", e.Cause)
	}
	return "seccomp filtering is not supported on this platform"
}

func (e *UnsupportedPlatformError) Unwrap() error { return e.Cause }

// InstallationFailedError reports that the kernel rejected the compiled
// filter, or that the policy could not be compiled into a loadable program.
// The enforcement state of the target threads is unchanged.
type InstallationFailedError struct {
	Cause error
}

func (e *InstallationFailedError) Error() string {
	return fmt.Sprintf("seccomp filter installation failed: %v", e.Cause)
}

func (e *InstallationFailedError) Unwrap() error { return e.Cause }

// AlreadyRestrictedError reports an apply attempt that the enforcement state
// machine forbids: reusing a consumed SafetyContext, or installing a policy
// that would widen the allow-list already in force.
type AlreadyRestrictedError struct {
	Reason string
}

func (e *AlreadyRestrictedError) Error() string {
	return fmt.Sprintf("process is already restricted: %s", e.Reason)
}
