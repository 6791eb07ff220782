package extrasafe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Kijewski/go-extrasafe/pkg/seccomp"
)

// EnforcementState describes whether a thread has a seccomp filter in
// force. The transition Unrestricted -> Restricted is one-way: the kernel
// offers no way to remove or relax an installed filter.
type EnforcementState int

const (
	Unrestricted EnforcementState = iota
	Restricted
)

func (s EnforcementState) String() string {
	if s == Restricted {
		return "restricted"
	}
	return "unrestricted"
}

// enforcement is the process-wide record of the last installed policy. The
// kernel's filter stacking is what actually prevents widening; this record
// lets the library refuse a widening attempt with a useful error instead of
// silently installing a filter that cannot take effect.
var enforcement struct {
	mu      sync.Mutex
	active  bool
	allowed seccomp.SyscallRules
}

func installPolicy(p *CompiledPolicy, allThreads bool) error {
	enforcement.mu.Lock()
	defer enforcement.mu.Unlock()

	if enforcement.active {
		if err := checkNarrower(enforcement.allowed, p.rules); err != nil {
			return err
		}
	}

	filter, err := p.assemble()
	if err != nil {
		return err
	}
	if !seccomp.Supported() {
		return &UnsupportedPlatformError{}
	}
	err = seccomp.Load(filter, seccomp.LoadOptions{NoNewPrivs: true, TSync: allThreads})
	switch {
	case err == nil:
	case errors.Is(err, seccomp.ErrNotSupported):
		return &UnsupportedPlatformError{Cause: err}
	default:
		return &InstallationFailedError{Cause: err}
	}

	enforcement.active = true
	allowed := seccomp.NewSyscallRules()
	allowed.Merge(p.rules)
	enforcement.allowed = allowed

	logrus.WithFields(logrus.Fields{
		"syscalls":    len(p.rules),
		"all_threads": allThreads,
		"default":     p.defaultAction.String(),
	}).Info("seccomp policy installed")
	return nil
}

// checkNarrower verifies that every rule in next is provably within what
// prev already allows: the syscall must be present, and its condition must
// be identical or subsumed by an unconditional one. Anything not provably
// narrower is refused; the structural comparison shares the precision limit
// of conflict detection.
func checkNarrower(prev, next seccomp.SyscallRules) error {
	for nr, rule := range next {
		before, ok := prev[nr]
		if !ok {
			return &AlreadyRestrictedError{
				Reason: fmt.Sprintf("policy would newly allow %s", sysnameOrNumber(nr)),
			}
		}
		if seccomp.Unconditional(before) || seccomp.SameRule(before, rule) {
			continue
		}
		return &AlreadyRestrictedError{
			Reason: fmt.Sprintf("policy would change the conditions on %s", sysnameOrNumber(nr)),
		}
	}
	return nil
}

func sysnameOrNumber(nr int) string {
	if name, ok := seccomp.SyscallName(nr); ok {
		return name
	}
	return fmt.Sprintf("syscall %d", nr)
}
