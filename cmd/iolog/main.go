// Command iolog transparently records a child process's stdin, stdout and
// stderr into a single annotated log file while passing every byte through
// unmodified, and exits reflecting the child's own exit disposition.
package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/loafer-mka/iolog/pkg/config"
	"github.com/loafer-mka/iolog/pkg/ioengine"
	"github.com/loafer-mka/iolog/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelFromEnv("IOLOG_LOG_LEVEL"))

	cfg, warnings := config.Load(os.Args[0] + ".conf")
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	command := append([]string{cfg.Exec}, os.Args[1:]...)

	eng := ioengine.New(logger)
	code, err := eng.Run(ioengine.Config{Command: command, LogPath: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "iolog: %v\n", err)
		os.Exit(startupFailureCode(err))
	}
	os.Exit(code)
}

// startupFailureCode mirrors the original's "restore descriptors, report,
// exit" contingency: a recognizable errno surfaces as that errno, anything
// else as a generic failure.
func startupFailureCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 1
}
