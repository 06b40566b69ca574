package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	tea "charm.land/bubbletea/v2"

	"github.com/askdw/askdw/internal/app"
	"github.com/askdw/askdw/internal/config"
	"github.com/askdw/askdw/internal/tui"
)

// runChat initializes and starts the interactive chat with Bubble Tea TUI.
func runChat() error {
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

	sess, err := a.Assistant.NewSession(ctx, "New conversation")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	model, err := tui.New(ctx, tui.Config{
		Assistant: a.Assistant,
		SessionID: sess.ID,
		Connect: func(ctx context.Context, p tui.ConnectParams) error {
			if err := applyConnectParams(cfg, p); err != nil {
				return err
			}
			return a.ConnectWarehouse(ctx)
		},
		Defaults: tui.ConnectParams{
			Host:     cfg.WarehouseHost,
			Port:     strconv.Itoa(cfg.WarehousePort),
			User:     cfg.WarehouseUser,
			Password: cfg.WarehousePassword,
			Database: cfg.WarehouseDBName,
		},
	})
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}

// applyConnectParams writes the connect form values over the warehouse
// config. Blank fields keep their configured defaults, except the
// password, where blank is a legitimate credential.
func applyConnectParams(cfg *config.Config, p tui.ConnectParams) error {
	if p.Host != "" {
		cfg.WarehouseHost = p.Host
	}
	if p.Port != "" {
		port, err := strconv.Atoi(p.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q", p.Port)
		}
		cfg.WarehousePort = port
	}
	if p.User != "" {
		cfg.WarehouseUser = p.User
	}
	cfg.WarehousePassword = p.Password
	if p.Database != "" {
		cfg.WarehouseDBName = p.Database
	}
	return nil
}
