package builtins

import "github.com/Kijewski/go-extrasafe/pkg/seccomp"

// Open flag bits that imply writing or creating. Identical values on amd64,
// 386, arm and arm64. O_TMPFILE is not listed because the kernel requires it
// to be combined with O_WRONLY or O_RDWR, which the mask already rejects.
const openWriteCreateBits = 0x1 | 0x2 | 0x40 | 0x80 | 0x200 | 0x400 // O_WRONLY|O_RDWR|O_CREAT|O_EXCL|O_TRUNC|O_APPEND

var (
	readSyscalls     = []string{"read", "readv", "pread64", "preadv", "preadv2", "lseek"}
	writeSyscalls    = []string{"write", "writev", "pwrite64", "pwritev", "pwritev2", "lseek", "fsync", "fdatasync"}
	openSyscalls     = []string{"open", "openat", "openat2", "creat"}
	metadataSyscalls = []string{
		"stat", "fstat", "lstat", "newfstatat", "statx",
		"getdents", "getdents64", "getcwd",
		"readlink", "readlinkat", "access", "faccessat", "faccessat2",
	}
)

// SystemIO allows file I/O. A new SystemIO allows nothing; capabilities are
// switched on one Allow method at a time.
type SystemIO struct {
	rules ruleMap
}

// NewSystemIO returns a SystemIO profile that allows nothing.
func NewSystemIO() *SystemIO {
	return &SystemIO{rules: make(ruleMap)}
}

// Everything returns a SystemIO allowing reads, writes, opening (with
// arbitrary flags), metadata, ioctl and close.
func Everything() *SystemIO {
	return NewSystemIO().
		AllowRead().
		AllowWrite().
		AllowOpen().
		AllowMetadata().
		AllowIoctl().
		AllowClose()
}

// AllowRead allows reading from already-open descriptors:
// read, readv, pread64, preadv, preadv2, lseek.
func (s *SystemIO) AllowRead() *SystemIO {
	s.rules.allow(readSyscalls...)
	return s
}

// AllowWrite allows writing to already-open descriptors:
// write, writev, pwrite64, pwritev, pwritev2, lseek, fsync, fdatasync.
func (s *SystemIO) AllowWrite() *SystemIO {
	s.rules.allow(writeSyscalls...)
	return s
}

// AllowOpen allows opening files with arbitrary flags:
// open, openat, openat2, creat. Prefer AllowOpenReadonly where possible.
func (s *SystemIO) AllowOpen() *SystemIO {
	s.rules.allow(openSyscalls...)
	return s
}

// AllowOpenReadonly allows open and openat only when no write or create
// flag bit is set. openat2 passes its flags in memory where seccomp cannot
// inspect them, so it stays denied.
func (s *SystemIO) AllowOpenReadonly() *SystemIO {
	s.rules.add("open", seccomp.PerArg{
		nil,
		seccomp.MaskedEqual(openWriteCreateBits, 0),
	})
	s.rules.add("openat", seccomp.PerArg{
		nil,
		nil,
		seccomp.MaskedEqual(openWriteCreateBits, 0),
	})
	return s
}

// AllowMetadata allows stat-family, directory listing and path resolution:
// stat, fstat, lstat, newfstatat, statx, getdents, getdents64, getcwd,
// readlink, readlinkat, access, faccessat, faccessat2.
func (s *SystemIO) AllowMetadata() *SystemIO {
	s.rules.allow(metadataSyscalls...)
	return s
}

// AllowIoctl allows ioctl on any descriptor.
func (s *SystemIO) AllowIoctl() *SystemIO {
	s.rules.allow("ioctl")
	return s
}

// AllowClose allows close.
func (s *SystemIO) AllowClose() *SystemIO {
	s.rules.allow("close")
	return s
}

// AllowStdin allows reading from file descriptor 0 only.
func (s *SystemIO) AllowStdin() *SystemIO {
	s.rules.add("read", seccomp.PerArg{seccomp.EqualTo(0)})
	return s
}

// AllowStdout allows writing to file descriptor 1 only.
func (s *SystemIO) AllowStdout() *SystemIO {
	s.rules.add("write", seccomp.PerArg{seccomp.EqualTo(1)})
	return s
}

// AllowStderr allows writing to file descriptor 2 only.
func (s *SystemIO) AllowStderr() *SystemIO {
	s.rules.add("write", seccomp.PerArg{seccomp.EqualTo(2)})
	return s
}

// AllowFileRead allows read, readv, pread64, preadv and lseek on one
// already-open descriptor.
func (s *SystemIO) AllowFileRead(fd uint32) *SystemIO {
	for _, name := range []string{"read", "readv", "pread64", "preadv", "lseek"} {
		s.rules.add(name, seccomp.PerArg{seccomp.EqualTo(fd)})
	}
	return s
}

// AllowFileWrite allows write, writev and pwrite64 on one already-open
// descriptor.
func (s *SystemIO) AllowFileWrite(fd uint32) *SystemIO {
	for _, name := range []string{"write", "writev", "pwrite64"} {
		s.rules.add(name, seccomp.PerArg{seccomp.EqualTo(fd)})
	}
	return s
}

// Name implements extrasafe.RuleSet.
func (s *SystemIO) Name() string { return "SystemIO" }

// RequiredRuleSets implements extrasafe.RuleSet.
func (s *SystemIO) RequiredRuleSets() []string { return nil }

// Rules implements extrasafe.RuleSet.
func (s *SystemIO) Rules() map[string]seccomp.SyscallRule {
	return s.rules.clone()
}
