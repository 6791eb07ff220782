package seccomp

import (
	"fmt"
	"strings"
)

// Argument conditions compare one 64-bit syscall argument slot against a
// constant. Conditions are immutable values; two conditions are equal when
// they compare equal with ==.

// AnyValue matches any argument value.
type AnyValue struct{}

func (AnyValue) String() string { return "*" }

// EqualTo matches an argument strictly equal to the value.
type EqualTo uint64

func (v EqualTo) String() string { return fmt.Sprintf("== %#x", uint64(v)) }

// NotEqual matches an argument strictly not equal to the value.
type NotEqual uint64

func (v NotEqual) String() string { return fmt.Sprintf("!= %#x", uint64(v)) }

// GreaterThan matches an argument strictly greater than the value.
type GreaterThan uint64

func (v GreaterThan) String() string { return fmt.Sprintf("> %#x", uint64(v)) }

// GreaterThanOrEqual matches an argument greater than or equal to the value.
type GreaterThanOrEqual uint64

func (v GreaterThanOrEqual) String() string { return fmt.Sprintf(">= %#x", uint64(v)) }

// LessThan matches an argument strictly less than the value.
type LessThan uint64

func (v LessThan) String() string { return fmt.Sprintf("< %#x", uint64(v)) }

// LessThanOrEqual matches an argument less than or equal to the value.
type LessThanOrEqual uint64

func (v LessThanOrEqual) String() string { return fmt.Sprintf("<= %#x", uint64(v)) }

type maskedEqual struct {
	mask  uint64
	value uint64
}

func (v maskedEqual) String() string { return fmt.Sprintf("& %#x == %#x", v.mask, v.value) }

// MaskedEqual matches an argument that equals value after being masked
// (bitwise &) with mask. Used to permit only approved flag bits.
func MaskedEqual(mask, value uint64) any {
	return maskedEqual{mask: mask, value: value}
}

// SyscallRule is the allow-condition attached to one syscall. A rule either
// matches (the syscall is allowed) or mismatches (evaluation falls through to
// the filter's default action).
type SyscallRule interface {
	// render emits the BPF fragment for the rule into prog. A matched rule
	// returns the program's match action; a mismatch falls through past
	// the fragment.
	render(prog *program)

	String() string
}

// MatchAll matches unconditionally.
type MatchAll struct{}

func (MatchAll) String() string { return "true" }

// PerArg matches when every listed condition over argument slots 0-5 holds.
// A nil slot is equivalent to AnyValue.
type PerArg [6]any

func (pa PerArg) String() string {
	var sb strings.Builder
	sb.WriteString("( ")
	for _, arg := range pa {
		if arg != nil {
			fmt.Fprintf(&sb, "%v ", arg)
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// Or matches when any of its branches matches. An empty Or matches nothing.
type Or []SyscallRule

func (or Or) String() string {
	switch len(or) {
	case 0:
		return "false"
	case 1:
		return or[0].String()
	}
	var sb strings.Builder
	sb.WriteRune('(')
	for i, rule := range or {
		if i != 0 {
			sb.WriteString(" || ")
		}
		sb.WriteString(rule.String())
	}
	sb.WriteRune(')')
	return sb.String()
}

// MergeRules combines two rules for the same syscall into their disjunction,
// simplifying MatchAll and flattening Or rules.
func MergeRules(a, b SyscallRule) SyscallRule {
	_, aAll := a.(MatchAll)
	_, bAll := b.(MatchAll)
	if aAll || bAll {
		return MatchAll{}
	}
	if SameRule(a, b) {
		return a
	}
	aOr, aIsOr := a.(Or)
	bOr, bIsOr := b.(Or)
	switch {
	case aIsOr && bIsOr:
		return append(append(Or{}, aOr...), bOr...)
	case aIsOr:
		return append(append(Or{}, aOr...), b)
	case bIsOr:
		return append(Or{a}, bOr...)
	}
	return Or{a, b}
}

// SameRule reports whether two rules are structurally identical. This is a
// syntactic check: rules that are semantically equivalent but written
// differently compare as different.
func SameRule(a, b SyscallRule) bool {
	switch x := a.(type) {
	case MatchAll:
		_, ok := b.(MatchAll)
		return ok
	case PerArg:
		y, ok := b.(PerArg)
		return ok && samePerArg(x, y)
	case Or:
		y, ok := b.(Or)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !SameRule(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func samePerArg(a, b PerArg) bool {
	for i := range a {
		if normalizeCond(a[i]) != normalizeCond(b[i]) {
			return false
		}
	}
	return true
}

// normalizeCond maps a nil slot to AnyValue so that omitted and explicit
// wildcards compare equal.
func normalizeCond(c any) any {
	if c == nil {
		return AnyValue{}
	}
	return c
}

// Unconditional reports whether the rule allows the syscall for any
// combination of arguments.
func Unconditional(r SyscallRule) bool {
	switch x := r.(type) {
	case MatchAll:
		return true
	case PerArg:
		for i := range x {
			if _, any := normalizeCond(x[i]).(AnyValue); !any {
				return false
			}
		}
		return true
	case Or:
		for _, branch := range x {
			if Unconditional(branch) {
				return true
			}
		}
	}
	return false
}
