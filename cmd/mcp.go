package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/askdw/askdw/internal/app"
	"github.com/askdw/askdw/internal/config"
	"github.com/askdw/askdw/internal/mcp"
)

// runMCP initializes and starts the MCP server on stdio transport.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr (see Execute); stdout carries JSON-RPC only.
	slog.Info("starting MCP server", "version", Version)

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Stdio clients cannot fill a connect form either; connect up front.
	if err := a.ConnectWarehouse(ctx); err != nil {
		return fmt.Errorf("connecting warehouse: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Name:      "askdw",
		Version:   Version,
		Assistant: a.Assistant,
		Logger:    slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	slog.Info("MCP server ready", "name", "askdw", "version", Version, "transport", "stdio")

	if err := mcpServer.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	slog.Info("MCP server shut down gracefully")
	return nil
}
