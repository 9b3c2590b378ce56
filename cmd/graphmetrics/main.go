// Command graphmetrics computes degree statistics, eigenvector centrality and
// community partitions for weighted directed graphs. It runs as an HTTP
// service, as a remote compute worker, or as a one-shot CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
