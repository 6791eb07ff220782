// Package config loads custom rule sets from YAML, for policies that are
// data rather than code:
//
//	rulesets:
//	  - name: my-worker
//	    requires: [BasicCapabilities]
//	    syscalls:
//	      - names: [read, write, close]
//	      - names: [openat]
//	        args:
//	          - index: 2
//	            op: maskedEqual
//	            mask: 0x6c3
//	            value: 0
//
// Entries for the same syscall OR-combine; conditions inside one entry must
// all hold (AND across argument slots).
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Kijewski/go-extrasafe/pkg/seccomp"
)

// File is the top-level YAML document.
type File struct {
	RuleSets []RuleSetConfig `yaml:"rulesets"`
}

// RuleSetConfig describes one custom rule set.
type RuleSetConfig struct {
	Name     string          `yaml:"name"`
	Requires []string        `yaml:"requires"`
	Syscalls []SyscallConfig `yaml:"syscalls"`
}

// SyscallConfig allows a group of syscalls, optionally under argument
// conditions shared by the whole group.
type SyscallConfig struct {
	Names []string    `yaml:"names"`
	Args  []ArgConfig `yaml:"args"`
}

// ArgConfig is one condition over one argument slot.
type ArgConfig struct {
	Index int    `yaml:"index"`
	Op    string `yaml:"op"`
	Value uint64 `yaml:"value"`
	Mask  uint64 `yaml:"mask"`
}

// RuleSet is a custom rule set loaded from configuration. It implements
// extrasafe.RuleSet.
type RuleSet struct {
	name     string
	requires []string
	rules    map[string]seccomp.SyscallRule
}

// Name implements extrasafe.RuleSet.
func (r *RuleSet) Name() string { return r.name }

// RequiredRuleSets implements extrasafe.RuleSet.
func (r *RuleSet) RequiredRuleSets() []string { return r.requires }

// Rules implements extrasafe.RuleSet.
func (r *RuleSet) Rules() map[string]seccomp.SyscallRule {
	out := make(map[string]seccomp.SyscallRule, len(r.rules))
	for name, rule := range r.rules {
		out[name] = rule
	}
	return out
}

// Load reads a YAML document and returns its rule sets in file order.
func Load(r io.Reader) ([]*RuleSet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse rule sets: %w", err)
	}
	if len(f.RuleSets) == 0 {
		return nil, fmt.Errorf("config: no rule sets defined")
	}
	out := make([]*RuleSet, 0, len(f.RuleSets))
	for _, rc := range f.RuleSets {
		rs, err := rc.toRuleSet()
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

// LoadFile reads rule sets from a YAML file.
func LoadFile(path string) ([]*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (rc RuleSetConfig) toRuleSet() (*RuleSet, error) {
	if rc.Name == "" {
		return nil, fmt.Errorf("config: rule set without a name")
	}
	rules := make(map[string]seccomp.SyscallRule)
	for _, sc := range rc.Syscalls {
		if len(sc.Names) == 0 {
			return nil, fmt.Errorf("config: rule set %q has a syscall entry without names", rc.Name)
		}
		rule, err := sc.toRule(rc.Name)
		if err != nil {
			return nil, err
		}
		for _, name := range sc.Names {
			if cur, ok := rules[name]; ok {
				rules[name] = seccomp.MergeRules(cur, rule)
			} else {
				rules[name] = rule
			}
		}
	}
	return &RuleSet{name: rc.Name, requires: rc.Requires, rules: rules}, nil
}

func (sc SyscallConfig) toRule(ruleSet string) (seccomp.SyscallRule, error) {
	if len(sc.Args) == 0 {
		return seccomp.MatchAll{}, nil
	}
	var pa seccomp.PerArg
	for _, ac := range sc.Args {
		if ac.Index < 0 || ac.Index > 5 {
			return nil, fmt.Errorf("config: rule set %q: argument index %d out of range 0-5", ruleSet, ac.Index)
		}
		if pa[ac.Index] != nil {
			return nil, fmt.Errorf("config: rule set %q: duplicate condition on argument %d", ruleSet, ac.Index)
		}
		cond, err := ac.toCond(ruleSet)
		if err != nil {
			return nil, err
		}
		pa[ac.Index] = cond
	}
	return pa, nil
}

func (ac ArgConfig) toCond(ruleSet string) (any, error) {
	switch ac.Op {
	case "equals":
		return seccomp.EqualTo(ac.Value), nil
	case "notEqual":
		return seccomp.NotEqual(ac.Value), nil
	case "greaterThan":
		return seccomp.GreaterThan(ac.Value), nil
	case "greaterOrEqual":
		return seccomp.GreaterThanOrEqual(ac.Value), nil
	case "lessThan":
		return seccomp.LessThan(ac.Value), nil
	case "lessOrEqual":
		return seccomp.LessThanOrEqual(ac.Value), nil
	case "maskedEqual":
		return seccomp.MaskedEqual(ac.Mask, ac.Value), nil
	}
	return nil, fmt.Errorf("config: rule set %q: unknown argument op %q", ruleSet, ac.Op)
}
