package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode gives each user-facing failure its own status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, visualdna.ErrDecodeFailure):
		return 2
	case errors.Is(err, visualdna.ErrEmptyTarget):
		return 3
	case errors.Is(err, models.ErrInvalidWeights):
		return 4
	case errors.Is(err, visualdna.ErrNotFound):
		return 5
	default:
		return 1
	}
}

func printBanner() {
	banner := `
__     ___                 _ ____  _   _    _
\ \   / (_)___ _   _  __ _| |  _ \| \ | |  / \
 \ \ / /| / __| | | |/ _' | | | | |  \| | / _ \
  \ V / | \__ \ |_| | (_| | | |_| | |\  |/ ___ \
   \_/  |_|___/\__,_|\__,_|_|____/|_| \_/_/   \_\

         Video Similarity Search CLI
`
	color.New(color.FgCyan).Fprintln(os.Stderr, banner)
}
