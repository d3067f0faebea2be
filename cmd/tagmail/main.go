package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ajramos/tagmail/internal/services"
)

// Exit codes; exitTempFail follows sysexits EX_TEMPFAIL so scripts can retry
const (
	exitError     = 1
	exitPermanent = 2
	exitTempFail  = 75
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case services.IsRetryableError(err):
		return exitTempFail
	case services.IsPermanentError(err):
		return exitPermanent
	}
	return exitError
}
