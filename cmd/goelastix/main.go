// Command goelastix drives the elastix and transformix registration tools
// and inspects what they leave behind.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"goelastix/pkg/process"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode passes a tool's own non-zero exit status through
func exitCode(err error) int {
	var perr *process.Error
	if errors.As(err, &perr) && perr.ExitCode > 0 {
		return perr.ExitCode
	}
	return 1
}
