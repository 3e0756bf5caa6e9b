// Command fwsubmit uploads firmware binaries to the CI service and creates a
// job request for them. The created job request ID is printed on stdout.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("submission failed", "error", err)
		stop()
		os.Exit(1)
	}
}
