// Package process starts the recorded child and translates its exit
// disposition into the exit code the recorder itself should return.
package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ExecStage names the point at which startup failed, for diagnostics.
type ExecStage int

const (
	StageOpenLog ExecStage = iota
	StageOpenPipe
	StageSpawn
)

func (s ExecStage) String() string {
	switch s {
	case StageOpenLog:
		return "opening log file"
	case StageOpenPipe:
		return "opening pipe"
	case StageSpawn:
		return "spawning child"
	default:
		return "unknown stage"
	}
}

// ExecError reports a startup failure and the stage at which it happened.
type ExecError struct {
	Stage ExecStage
	Err   error
}

func (e *ExecError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *ExecError) Unwrap() error { return e.Err }

// ExecParams describes the child to spawn. Stdin/Stdout/Stderr are the
// child-side pipe ends; the caller owns and closes its own parent-side ends
// once Start returns.
type ExecParams struct {
	Command []string
	Stdin   *os.File
	Stdout  *os.File
	Stderr  *os.File
}

// Start spawns the child and returns its PID. The child's environment is
// inherited unchanged (Cmd.Env left nil forwards os.Environ() verbatim).
// Reaping is the caller's responsibility: this package never calls
// cmd.Wait, so the engine's own wait4 polling is the sole reaper and no
// background goroutine races it for the child's exit status.
func Start(p ExecParams) (pid int, err error) {
	if len(p.Command) == 0 {
		return 0, &ExecError{Stage: StageSpawn, Err: fmt.Errorf("empty command")}
	}
	cmd := exec.Command(p.Command[0], p.Command[1:]...)
	cmd.Stdin = p.Stdin
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	// No SysProcAttr: the child stays in this process's process group,
	// matching the original's plain fork() with no setpgid call, so a
	// terminal-delivered signal reaches parent and child the same way
	// it did before this recorder was interposed.
	if err := cmd.Start(); err != nil {
		return 0, &ExecError{Stage: StageSpawn, Err: err}
	}
	return cmd.Process.Pid, nil
}

// ChildExit is the reaped child's wait status.
type ChildExit struct {
	PID    int
	Status syscall.WaitStatus
}

// ExitCode translates the child's wait status into the code the recorder
// itself should exit with: the child's own exit status if it exited
// normally, 128+signal if it was killed or stopped by a signal, 128 for
// anything else.
func (c ChildExit) ExitCode() int {
	switch {
	case c.Status.Exited():
		return c.Status.ExitStatus()
	case c.Status.Signaled():
		return 128 + int(c.Status.Signal())
	case c.Status.Stopped():
		return 128 + int(c.Status.StopSignal())
	default:
		return 128
	}
}

// Reap performs a single wait4 on pid. block selects WNOHANG (non-blocking,
// used from the event loop every iteration) versus a blocking wait (used
// once at shutdown to guarantee the child is gone before exiting). A
// returned pid of 0 (child still running) and any error are both reported
// as "not yet gone" — wait4's -1/EINTR distinction is not meaningful here
// since the caller always retries on the next iteration.
func Reap(pid int, block bool) (ChildExit, bool, error) {
	var status syscall.WaitStatus
	flag := syscall.WNOHANG
	if block {
		flag = 0
	}
	got, err := syscall.Wait4(pid, &status, flag, nil)
	if err != nil {
		return ChildExit{}, false, err
	}
	if got <= 0 {
		return ChildExit{}, false, nil
	}
	return ChildExit{PID: got, Status: status}, true, nil
}
