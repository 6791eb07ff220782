package extrasafe

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Kijewski/go-extrasafe/pkg/seccomp"
)

// SafetyContext accumulates rule sets and compiles them into a single
// seccomp allow-list. The zero value is not usable; create contexts with
// New.
//
// A context is owned by one call sequence: it is not safe for concurrent
// mutation. Applying a context consumes it.
type SafetyContext struct {
	defaultAction seccomp.Action
	enabled       map[string]map[string]seccomp.SyscallRule
	entries       map[string]*policyEntry
	applied       bool
}

// policyEntry is the merged allow-condition for one syscall, with the rule
// set that shaped it, for error reporting.
type policyEntry struct {
	rule   seccomp.SyscallRule
	source string
}

// New returns an empty SafetyContext. Unmatched syscalls kill the process
// until a different default action is selected with SetDefaultAction.
func New() *SafetyContext {
	return &SafetyContext{
		defaultAction: seccomp.ActionKillProcess,
		enabled:       make(map[string]map[string]seccomp.SyscallRule),
		entries:       make(map[string]*policyEntry),
	}
}

// SetDefaultAction selects what happens to syscalls the policy does not
// allow: seccomp.ActionKillProcess (the default), seccomp.ActionKillThread,
// seccomp.ActionErrno (usually with a return code, e.g.
// seccomp.ActionErrno.WithReturnCode(int16(unix.EPERM))), seccomp.ActionLog
// or seccomp.ActionTrap. ActionAllow is rejected: it would turn the
// allow-list into a no-op.
func (c *SafetyContext) SetDefaultAction(a seccomp.Action) error {
	if c.applied {
		return &AlreadyRestrictedError{Reason: "this context has been applied"}
	}
	switch a.Action() {
	case seccomp.ActionErrno, seccomp.ActionTrap, seccomp.ActionLog,
		seccomp.ActionTrace, seccomp.ActionKillThread, seccomp.ActionKillProcess:
		c.defaultAction = a
		return nil
	}
	return fmt.Errorf("extrasafe: %v is not a valid default action", a)
}

// Enable adds a rule set to the context.
//
// All of the rule set's declared dependencies must already be enabled.
// Rules merge with previously enabled rule sets per syscall: identical
// conditions collapse into one, an unconditional rule subsumes conditional
// ones, and two different conditional rules from different rule sets are a
// conflict. Enabling the exact same rule set again is a no-op; enabling a
// different rule set under an already-used name is an error.
//
// On error the context is left unchanged.
func (c *SafetyContext) Enable(rs RuleSet) error {
	if c.applied {
		return &AlreadyRestrictedError{Reason: "this context has been applied"}
	}

	name := rs.Name()
	rules := cloneRules(rs.Rules())

	if prev, ok := c.enabled[name]; ok {
		if sameRules(prev, rules) {
			return nil
		}
		return &RedefinedRuleSetError{Name: name}
	}
	for _, dep := range rs.RequiredRuleSets() {
		if _, ok := c.enabled[dep]; !ok {
			return &MissingDependencyError{RuleSet: name, Missing: dep}
		}
	}

	// Validate the whole merge before mutating, so a conflict cannot
	// leave the context half-updated.
	merged := make(map[string]*policyEntry, len(rules))
	sysnames := make([]string, 0, len(rules))
	for sysname := range rules {
		sysnames = append(sysnames, sysname)
	}
	sort.Strings(sysnames)
	for _, sysname := range sysnames {
		rule := rules[sysname]
		cur, ok := c.entries[sysname]
		switch {
		case !ok:
			merged[sysname] = &policyEntry{rule: rule, source: name}
		case seccomp.Unconditional(cur.rule):
			// Existing unconditional rule subsumes anything new.
		case seccomp.Unconditional(rule):
			merged[sysname] = &policyEntry{rule: seccomp.MatchAll{}, source: name}
		case seccomp.SameRule(cur.rule, rule):
			// Identical conditions, keep the existing entry.
		default:
			return &ConflictingRuleError{Syscall: sysname, Previous: cur.source, Added: name}
		}
	}

	for sysname, e := range merged {
		c.entries[sysname] = e
	}
	c.enabled[name] = rules
	logrus.WithFields(logrus.Fields{
		"ruleset":  name,
		"syscalls": len(rules),
	}).Debug("enabled rule set")
	return nil
}

// Compile merges the enabled rule sets into a CompiledPolicy without
// touching the kernel. The result is deterministic for the same sequence of
// Enable calls. Syscalls absent from the policy are denied.
func (c *SafetyContext) Compile() (*CompiledPolicy, error) {
	if c.applied {
		return nil, &AlreadyRestrictedError{Reason: "this context has been applied"}
	}
	rules := seccomp.NewSyscallRules()
	names := make(map[int]string, len(c.entries))
	for sysname, e := range c.entries {
		nr, ok := seccomp.SyscallNumber(sysname)
		if !ok {
			// Not a syscall on this architecture; default-deny makes
			// skipping fail closed.
			continue
		}
		rules.AddRule(nr, e.rule)
		names[nr] = sysname
	}
	return &CompiledPolicy{
		defaultAction: c.defaultAction,
		rules:         rules,
		names:         names,
	}, nil
}

// ApplyToCurrentThread compiles the context and installs the filter for the
// calling thread only. The restriction is irreversible for the lifetime of
// the thread. The context is consumed on success.
//
// Callers should pin the goroutine with runtime.LockOSThread first,
// otherwise the restricted thread is whichever one the goroutine happened to
// run on.
func (c *SafetyContext) ApplyToCurrentThread() error {
	return c.apply(false)
}

// ApplyToAllThreads compiles the context and installs the filter atomically
// on every thread of the process. Either every thread ends up restricted or
// none does and an error is returned. The context is consumed on success.
func (c *SafetyContext) ApplyToAllThreads() error {
	return c.apply(true)
}

func (c *SafetyContext) apply(allThreads bool) error {
	policy, err := c.Compile()
	if err != nil {
		return err
	}
	if err := installPolicy(policy, allThreads); err != nil {
		return err
	}
	c.applied = true
	return nil
}
