package process

import (
	"syscall"
	"testing"
)

func TestChildExitCodeExited(t *testing.T) {
	cases := []struct {
		name string
		code int
		want int
	}{
		{"zero", 0, 0},
		{"nonzero", 7, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ce := ChildExit{Status: syscall.WaitStatus(tc.code << 8)}
			if got := ce.ExitCode(); got != tc.want {
				t.Fatalf("ExitCode() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestChildExitCodeSignaled(t *testing.T) {
	ce := ChildExit{Status: syscall.WaitStatus(int(syscall.SIGKILL))}
	if got, want := ce.ExitCode(), 128+int(syscall.SIGKILL); got != want {
		t.Fatalf("ExitCode() = %d, want %d", got, want)
	}
}

func TestReapNonexistentPID(t *testing.T) {
	// A PID that was never forked by this test binary should report
	// "not gone" rather than panicking, matching the termination test's
	// tolerance for wait4 failing with ECHILD/ESRCH.
	_, ok, err := Reap(1<<30, false)
	if ok {
		t.Fatalf("expected ok=false for a bogus pid")
	}
	if err == nil {
		t.Fatalf("expected an error for a bogus pid")
	}
}

func TestStartEmptyCommand(t *testing.T) {
	if _, err := Start(ExecParams{}); err == nil {
		t.Fatalf("expected an error starting an empty command")
	}
}
