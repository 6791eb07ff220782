// Package seccomp compiles syscall allow-rules into seccomp-BPF filter
// programs and installs them for the current thread or process.
package seccomp

import (
	"errors"

	"golang.org/x/net/bpf"
)

// Filter is an assembled seccomp BPF filter program. Each raw instruction
// has the memory layout of a kernel struct sock_filter.
type Filter []bpf.RawInstruction

// ErrNotSupported is returned by Load on platforms or kernels without
// seccomp filter support.
var ErrNotSupported = errors.New("seccomp: filters are not supported on this platform")

// Assemble converts a compiled program into a loadable Filter.
func Assemble(prog []bpf.Instruction) (Filter, error) {
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return nil, err
	}
	return Filter(raw), nil
}

// LoadOptions control how a filter is installed.
type LoadOptions struct {
	// NoNewPrivs sets PR_SET_NO_NEW_PRIVS before loading, which is
	// required to load a filter without CAP_SYS_ADMIN.
	NoNewPrivs bool
	// TSync atomically applies the filter to every thread of the process.
	// Without it only the calling thread is affected.
	TSync bool
	// Log asks the kernel to log every non-allow action taken.
	Log bool
}
