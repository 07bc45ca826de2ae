// File: cmd/dossier/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/dossier-cli/cmd"
	"github.com/xkilldash9x/dossier-cli/internal/observability"
)

// osExit allows mocking os.Exit in tests.
var osExit = os.Exit

// Exit codes. A finished investigation is success even when individual
// collectors failed; only a deadline overrun and fatal setup errors differ.
const (
	exitOK       = 0
	exitFatal    = 1
	exitTimedOut = 2
)

func main() {
	osExit(run())
}

func run() int {
	// Listen for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cmd.ErrTimedOut):
		// The partial report was already rendered.
		return exitTimedOut
	default:
		return exitFatal
	}
}
