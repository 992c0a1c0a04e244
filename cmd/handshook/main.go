// handshook — automated job applications for Handshake.
//
// Discovers postings from saved search pages or the live postings API,
// filters them against the configured keyword interest list, and submits
// applications with the user's stored document IDs. Ledgers in a local
// database prevent duplicate applications across runs and park postings
// whose application window has not opened yet.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Prakashmaheshwaran/handshook/cmd/handshook/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
