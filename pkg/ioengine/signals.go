package ioengine

import (
	"os"
	"os/signal"
	"syscall"
)

// setupSignals registers the full SIGHUP..SIGSYS range with the Go runtime,
// mirroring iolog.c's signal_handler registration loop. Unlike the original
// C handler (which must be async-signal-safe because it runs on the
// interrupted thread's own stack), signal.Notify hands delivery off to a
// channel that the event loop goroutine drains on its own schedule, so the
// log buffer never needs a lock-free append.
func setupSignals() chan os.Signal {
	ch := make(chan os.Signal, 64)
	sigs := make([]os.Signal, 0, 31)
	for n := 1; n <= 31; n++ {
		sigs = append(sigs, syscall.Signal(n))
	}
	signal.Notify(ch, sigs...)
	return ch
}

func stopSignals(ch chan os.Signal) {
	signal.Stop(ch)
}
