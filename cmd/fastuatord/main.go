// Command fastuatord serves health, liveness, readiness, info and metrics
// endpoints for the dependencies named in its configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fastuatord:", err)
		stop()
		os.Exit(1)
	}
}
