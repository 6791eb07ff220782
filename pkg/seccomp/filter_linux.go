package seccomp

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// SockFprog converts Filter to SockFprog for the seccomp syscall
func (f Filter) SockFprog() *syscall.SockFprog {
	return &syscall.SockFprog{
		Len:    uint16(len(f)),
		Filter: (*syscall.SockFilter)(unsafe.Pointer(&f[0])),
	}
}

// Supported reports whether the running kernel supports seccomp filters.
func Supported() bool {
	// ENOSYS or EINVAL means the kernel was built without CONFIG_SECCOMP.
	if err := unix.Prctl(unix.PR_GET_SECCOMP, 0, 0, 0, 0); err != nil {
		return false
	}
	return true
}

// Load installs the filter for the calling thread, or for all threads of the
// process when opts.TSync is set. Loading is irreversible: the filter stays
// active for the lifetime of each affected thread, and later filters only
// stack on top of it.
func Load(f Filter, opts LoadOptions) error {
	if len(f) == 0 {
		return fmt.Errorf("seccomp: empty filter program")
	}
	if opts.NoNewPrivs {
		if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
			return fmt.Errorf("seccomp: set no_new_privs: %w", err)
		}
	}

	var flags uintptr
	if opts.TSync {
		flags |= unix.SECCOMP_FILTER_FLAG_TSYNC
	}
	if opts.Log {
		flags |= unix.SECCOMP_FILTER_FLAG_LOG
	}

	logrus.WithFields(logrus.Fields{
		"instructions": len(f),
		"tsync":        opts.TSync,
	}).Debug("installing seccomp filter")

	prog := f.SockFprog()
	tid, _, errno := syscall.Syscall(unix.SYS_SECCOMP, unix.SECCOMP_SET_MODE_FILTER, flags, uintptr(unsafe.Pointer(prog)))
	if errno != 0 {
		if errno == unix.ENOSYS || errno == unix.EINVAL {
			return ErrNotSupported
		}
		return fmt.Errorf("seccomp: load filter: %w", errno)
	}
	// With TSYNC the kernel reports the first thread that could not be
	// synchronized as a positive return value.
	if tid != 0 {
		return fmt.Errorf("seccomp: thread %d could not synchronize to the new filter", tid)
	}
	return nil
}
