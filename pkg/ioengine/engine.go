// Package ioengine is the recorder's event loop: it drives the four
// Buffers (stdin, stdout, stderr, log) through one poll-driven transfer per
// iteration, mirrors stream bytes into the log under their tag, annotates
// received signals, reaps the child non-blockingly, and decides when the
// run is over.
package ioengine

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/loafer-mka/iolog/pkg/buffer"
	"github.com/loafer-mka/iolog/pkg/logging"
	"github.com/loafer-mka/iolog/pkg/process"
)

const (
	// pollTimeoutMillis is the poll(2) wait ceiling per iteration.
	pollTimeoutMillis = 1
	// idleSpinDelay is slept once when a ready iteration made no
	// progress at all, to avoid a tight busy loop.
	idleSpinDelay = 100 * time.Millisecond
)

// Config describes one run: the full argv to exec (already substituting
// the configured exec path for argv[0]) and the log file path to write.
type Config struct {
	Command []string
	LogPath string
}

// Engine owns the four buffers and the tracked child for a single run.
type Engine struct {
	in, out, err, log *buffer.Buffer
	logger            *logging.Logger

	sigCh     chan os.Signal
	childPID  int
	childGone bool
	reaped    bool
	exitCode  int
}

// New builds an Engine that logs its own diagnostics through logger.
func New(logger *logging.Logger) *Engine {
	return &Engine{
		in:     buffer.NewStream("stdin", '<'),
		out:    buffer.NewStream("stdout", '>'),
		err:    buffer.NewStream("stderr", '!'),
		log:    buffer.NewLog("log"),
		logger: logger,
	}
}

// Run spawns the child described by cfg, drives the event loop until both
// the child is reaped and every buffer is drained, then returns the exit
// code the process should report.
func (e *Engine) Run(cfg Config) (int, error) {
	logFile, err := openLogFile(cfg.LogPath)
	if err != nil {
		return 0, &process.ExecError{Stage: process.StageOpenLog, Err: err}
	}
	if err := e.log.AttachWrite(logFile, false); err != nil {
		return 0, err
	}

	e.log.AppendTagged('=', []byte(formatHeader(cfg.Command)))

	inR, inW, err := os.Pipe()
	if err != nil {
		e.log.Close()
		return 0, &process.ExecError{Stage: process.StageOpenPipe, Err: err}
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		e.log.Close()
		return 0, &process.ExecError{Stage: process.StageOpenPipe, Err: err}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		outR.Close()
		outW.Close()
		e.log.Close()
		return 0, &process.ExecError{Stage: process.StageOpenPipe, Err: err}
	}

	pid, err := process.Start(process.ExecParams{
		Command: cfg.Command,
		Stdin:   inR,
		Stdout:  outW,
		Stderr:  errW,
	})
	inR.Close()
	outW.Close()
	errW.Close()
	if err != nil {
		inW.Close()
		outR.Close()
		errR.Close()
		e.log.Close()
		return 0, err
	}
	e.childPID = pid

	if err := e.in.AttachRead(os.Stdin, true); err != nil {
		return 0, err
	}
	if err := e.in.AttachWrite(inW, false); err != nil {
		return 0, err
	}
	if err := e.out.AttachRead(outR, false); err != nil {
		return 0, err
	}
	if err := e.out.AttachWrite(os.Stdout, true); err != nil {
		return 0, err
	}
	if err := e.err.AttachRead(errR, false); err != nil {
		return 0, err
	}
	if err := e.err.AttachWrite(os.Stderr, true); err != nil {
		return 0, err
	}
	e.in.Start(buffer.OpRead)
	e.out.Start(buffer.OpRead)
	e.err.Start(buffer.OpRead)

	e.sigCh = setupSignals()
	defer stopSignals(e.sigCh)

	e.logger.Info("spawned child pid=%d", pid)

	e.loop()

	e.finalReap()
	e.log.AppendRaw([]byte("\n"))
	e.flushLog()
	e.closeAll()

	return e.exitCode, nil
}

func (e *Engine) loop() {
	for {
		e.drainSignals()

		pfds, entries := e.buildPoll()

		n, perr := unix.Poll(pfds, pollTimeoutMillis)
		if perr != nil {
			if perr == unix.EINTR {
				continue
			}
			e.logger.Error("poll: %v", perr)
			return
		}

		moved := 0
		if n > 0 {
			moved = e.transfer(pfds, entries)
		}

		e.probeDescriptors()
		e.reapChild()

		if e.done() {
			return
		}
		if n > 0 && moved == 0 {
			time.Sleep(idleSpinDelay)
		}
	}
}

type armedEntry struct {
	buf      *buffer.Buffer
	wantRead bool
}

func (e *Engine) buildPoll() ([]unix.PollFd, []armedEntry) {
	var pfds []unix.PollFd
	var entries []armedEntry
	for _, b := range e.buffers() {
		if fd, ok := b.WantRead(); ok {
			pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			entries = append(entries, armedEntry{buf: b, wantRead: true})
			continue
		}
		if fd, ok := b.WantWrite(); ok {
			pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLOUT})
			entries = append(entries, armedEntry{buf: b, wantRead: false})
		}
	}
	return pfds, entries
}

func (e *Engine) buffers() []*buffer.Buffer {
	return []*buffer.Buffer{e.in, e.out, e.err, e.log}
}

func (e *Engine) transfer(pfds []unix.PollFd, entries []armedEntry) int {
	moved := 0
	for i, pf := range pfds {
		if pf.Revents == 0 {
			continue
		}
		ent := entries[i]
		if ent.wantRead {
			n := ent.buf.DoRead()
			if n > 0 && ent.buf != e.log {
				e.log.AppendTagged(ent.buf.Sign, ent.buf.Bytes(n))
			}
			moved += n
		} else {
			moved += ent.buf.DoWrite()
		}
	}
	return moved
}

func (e *Engine) probeDescriptors() {
	for _, b := range []*buffer.Buffer{e.in, e.out, e.err} {
		b.CloseIfGone()
	}
	if e.childGone {
		e.in.CloseRead()
	}
}

func (e *Engine) drainSignals() {
	for {
		select {
		case sig, ok := <-e.sigCh:
			if !ok {
				return
			}
			e.handleSignal(sig)
		default:
			return
		}
	}
}

func (e *Engine) handleSignal(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	n := int(s)
	name := signalName(n)
	var text string
	if name != "" {
		text = fmt.Sprintf(" signal=%s (%d)\n", name, n)
	} else {
		text = fmt.Sprintf(" signal=%d\n", n)
	}
	e.log.AppendTagged('*', []byte(text))
	if s == syscall.SIGCHLD {
		e.childGone = true
	}
}

func (e *Engine) reapChild() {
	if e.reaped {
		return
	}
	ce, ok, err := process.Reap(e.childPID, false)
	if err != nil || !ok {
		return
	}
	e.exitCode = ce.ExitCode()
	e.reaped = true
}

func (e *Engine) finalReap() {
	if e.reaped {
		return
	}
	ce, ok, err := process.Reap(e.childPID, true)
	if err != nil {
		e.logger.Error("final wait for child: %v", err)
		return
	}
	if ok {
		e.exitCode = ce.ExitCode()
		e.reaped = true
	}
}

func (e *Engine) done() bool {
	for _, b := range []*buffer.Buffer{e.in, e.out, e.err} {
		if b.CanProgress() {
			return false
		}
	}
	if e.log.HasPending() && e.log.WriteOpen() {
		return false
	}
	return e.reaped
}

// flushLog writes out whatever is left in the log buffer. Its write end is
// always a regular file, so O_NONBLOCK never yields EAGAIN here and this
// converges in a bounded number of iterations.
func (e *Engine) flushLog() {
	for e.log.HasPending() {
		if e.log.DoWrite() <= 0 {
			return
		}
	}
}

func (e *Engine) closeAll() {
	e.in.Close()
	e.out.Close()
	e.err.Close()
	e.log.Close()
}

func formatHeader(command []string) string {
	return strings.Join(command, " ") + "\n\n"
}

func openLogFile(path string) (*os.File, error) {
	os.Remove(path)
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
}
