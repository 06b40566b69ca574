package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/askdw/askdw/internal/app"
	"github.com/askdw/askdw/internal/config"
)

// runDescribe builds the schema description cache and prints it. With
// --refresh the cache is discarded and regenerated from the live schema,
// the manual escape hatch after a schema change.
func runDescribe() error {
	describeFlags := flag.NewFlagSet("describe", flag.ContinueOnError)
	describeFlags.SetOutput(os.Stderr)
	refresh := describeFlags.Bool("refresh", false, "discard the cache and regenerate")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := describeFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing describe flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if err := a.ConnectWarehouse(ctx); err != nil {
		return fmt.Errorf("connecting warehouse: %w", err)
	}

	describer := a.Describer()

	var text string
	if *refresh {
		logger.Info("regenerating schema descriptions", "cache", cfg.SchemaCachePath)
		text, err = describer.Refresh(ctx)
	} else {
		text, err = describer.DescribeAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("describing schema: %w", err)
	}

	fmt.Println(text)
	return nil
}
