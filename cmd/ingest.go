package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lectern/lectern/internal/app"
	"github.com/lectern/lectern/internal/config"
)

// runIngest loads course documents from a directory into the vector index.
func runIngest() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	docsDir := cfg.DocsDir
	if len(os.Args) >= 3 {
		docsDir = os.Args[2]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	summary, err := a.Ingestor.Run(ctx, docsDir)
	if err != nil {
		return fmt.Errorf("ingesting documents: %w", err)
	}

	fmt.Printf("Courses added:   %d\n", summary.CoursesAdded)
	fmt.Printf("Courses skipped: %d\n", summary.CoursesSkipped)
	fmt.Printf("Chunks added:    %d\n", summary.ChunksAdded)
	return nil
}
