package extrasafe_test

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"golang.org/x/sys/unix"

	extrasafe "github.com/Kijewski/go-extrasafe"
	"github.com/Kijewski/go-extrasafe/builtins"
	"github.com/Kijewski/go-extrasafe/pkg/seccomp"
)

const helperEnv = "EXTRASAFE_HELPER_PROCESS"

// runtimeSupport allows what the Go runtime and the test harness need beyond
// the builtin profiles while the filter is in force.
type runtimeSupport struct{}

func (runtimeSupport) Name() string               { return "runtimeSupport" }
func (runtimeSupport) RequiredRuleSets() []string { return nil }
func (runtimeSupport) Rules() map[string]seccomp.SyscallRule {
	names := []string{
		"epoll_create1", "epoll_ctl", "epoll_pwait", "epoll_wait",
		"eventfd2", "pipe2", "fcntl", "dup", "dup3",
	}
	m := make(map[string]seccomp.SyscallRule, len(names))
	for _, n := range names {
		m[n] = seccomp.MatchAll{}
	}
	return m
}

// TestApplyToAllThreads installs a real filter in a subprocess: enforcement
// is irreversible, so the test process itself must stay unrestricted.
func TestApplyToAllThreads(t *testing.T) {
	if os.Getenv(helperEnv) == "1" {
		t.Skip("running as helper")
	}
	if !seccomp.Supported() {
		t.Skip("seccomp not supported on this kernel")
	}
	cmd := exec.Command(os.Args[0], "-test.run=TestHelperApplyPolicy$", "-test.v")
	cmd.Env = append(os.Environ(), helperEnv+"=1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("restricted helper failed: %v\n%s", err, out)
	}
}

// TestHelperApplyPolicy is the body of TestApplyToAllThreads. It only does
// anything when launched as a subprocess with the helper environment set.
func TestHelperApplyPolicy(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		t.Skip("helper process only")
	}

	ctx := extrasafe.New()
	if err := ctx.SetDefaultAction(seccomp.ActionErrno.WithReturnCode(int16(unix.EPERM))); err != nil {
		t.Fatal(err)
	}
	for _, rs := range []extrasafe.RuleSet{
		builtins.BasicCapabilities{},
		builtins.NewThreads().AllowCreate().AllowSleep(),
		builtins.NewTime().AllowGettime(),
		builtins.NewSystemIO().AllowRead().AllowWrite().AllowOpenReadonly().
			AllowMetadata().AllowIoctl().AllowClose(),
		runtimeSupport{},
	} {
		if err := ctx.Enable(rs); err != nil {
			t.Fatalf("Enable(%s): %v", rs.Name(), err)
		}
	}
	if err := ctx.ApplyToAllThreads(); err != nil {
		t.Fatalf("ApplyToAllThreads: %v", err)
	}

	if state, err := extrasafe.ThreadState(); err != nil {
		t.Errorf("ThreadState: %v", err)
	} else if state != extrasafe.Restricted {
		t.Errorf("ThreadState() = %v, want restricted", state)
	}

	// Allowed: writing to an already-open descriptor.
	if _, err := unix.Write(2, []byte("restricted helper alive\n")); err != nil {
		t.Errorf("write was denied: %v", err)
	}

	// Allowed: read-only opens pass the masked flag check. ThreadState above
	// already exercised this through /proc, but check a plain file too.
	if fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0); err != nil {
		t.Errorf("read-only open was denied: %v", err)
	} else {
		unix.Close(fd)
	}

	// Denied: opening for writing. The errno default turns the denial into
	// EPERM instead of killing the process.
	fd, err := unix.Open("/dev/null", unix.O_WRONLY, 0)
	if err == nil {
		unix.Close(fd)
		t.Error("open for writing was allowed despite not being in the policy")
	} else if err != unix.EPERM {
		t.Errorf("open for writing failed with %v, want EPERM", err)
	}

	// The context is consumed; a second apply must be refused.
	if err := ctx.ApplyToAllThreads(); err == nil {
		t.Error("second apply on a consumed context succeeded")
	}

	// A fresh policy that would allow syscalls outside the installed one is
	// a widening attempt and must be refused before reaching the kernel.
	wider := extrasafe.New()
	if err := wider.SetDefaultAction(seccomp.ActionErrno.WithReturnCode(int16(unix.EPERM))); err != nil {
		t.Fatal(err)
	}
	if err := wider.Enable(builtins.BasicCapabilities{}); err != nil {
		t.Fatal(err)
	}
	if err := wider.Enable(builtins.NewNetworking().AllowStartTCPClients()); err != nil {
		t.Fatal(err)
	}
	var restricted *extrasafe.AlreadyRestrictedError
	if err := wider.ApplyToAllThreads(); !errors.As(err, &restricted) {
		t.Errorf("widening apply returned %v, want AlreadyRestrictedError", err)
	}
}
