package seccomp

import (
	"fmt"
	"runtime"

	"github.com/elastic/go-seccomp-bpf/arch"
)

var info, errInfo = arch.GetInfo("")

// Audit architecture identifiers (include/uapi/linux/audit.h) for the
// architectures with a syscall table in this package. All little-endian.
const (
	auditArchX86_64  = 0xc000003e
	auditArchI386    = 0x40000003
	auditArchAArch64 = 0xc00000b7
	auditArchARM     = 0x40000028
)

// SyscallNumber resolves a syscall name to its number on the running
// architecture. It returns false for names the architecture does not have.
func SyscallNumber(name string) (int, bool) {
	if errInfo != nil {
		return 0, false
	}
	nr, ok := info.SyscallNames[name]
	return nr, ok
}

// SyscallName resolves a syscall number back to its name.
func SyscallName(nr int) (string, bool) {
	if errInfo != nil {
		return "", false
	}
	n, ok := info.SyscallNumbers[nr]
	return n, ok
}

// NativeAuditArch returns the audit architecture value for the running
// architecture, and whether x32 ABI syscall numbers must be rejected.
func NativeAuditArch() (auditArch uint32, denyX32 bool, err error) {
	if errInfo != nil {
		return 0, false, errInfo
	}
	switch runtime.GOARCH {
	case "amd64":
		return auditArchX86_64, true, nil
	case "386":
		return auditArchI386, false, nil
	case "arm64":
		return auditArchAArch64, false, nil
	case "arm":
		return auditArchARM, false, nil
	}
	return 0, false, fmt.Errorf("seccomp: no audit arch for %s", runtime.GOARCH)
}
