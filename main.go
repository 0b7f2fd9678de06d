// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/cafogleman/cb-response-surveyor/cmd"
)

// main is the entry point for the surveyor CLI.
func main() {
	// A context that cancels on SIGINT/SIGTERM. Cancellation mid-query keeps
	// the records already collected; see internal/survey.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
