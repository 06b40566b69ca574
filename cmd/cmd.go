// Package cmd provides the askdw command line interface.
//
// Commands:
//   - chat: interactive terminal chat with Bubble Tea TUI (default)
//   - serve: HTTP JSON API server
//   - mcp: Model Context Protocol server over stdio
//   - describe: build or refresh the schema description cache
//
// Signal handling and graceful shutdown are implemented for all
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/askdw/askdw/internal/log"
)

// Execute is the main entry point for the askdw application.
func Execute() error {
	// .env is a convenience for local development; absence is normal.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		return runChat()
	}

	switch os.Args[1] {
	case "chat":
		return runChat()
	case "serve":
		return runServe()
	case "mcp":
		return runMCP()
	case "describe":
		return runDescribe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("askdw - Chat with your data warehouse")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  askdw [chat]          Start interactive chat mode (default)")
	fmt.Println("  askdw serve [addr]    Start HTTP API server (default: :8080)")
	fmt.Println("  askdw mcp             Start MCP server (for Claude Desktop/Cursor)")
	fmt.Println("  askdw describe        Build the schema description cache")
	fmt.Println("  askdw describe --refresh  Rebuild the cache from scratch")
	fmt.Println("  askdw --version       Show version information")
	fmt.Println("  askdw --help          Show this help")
	fmt.Println()
	fmt.Println("Chat commands (in interactive mode):")
	fmt.Println("  /help                 Show available commands")
	fmt.Println("  /clear                Clear conversation view")
	fmt.Println("  /exit, /quit          Exit askdw")
	fmt.Println()
	fmt.Println("Shortcuts:")
	fmt.Println("  Ctrl+D                Exit askdw")
	fmt.Println("  Ctrl+C                Cancel current turn or clear input")
	fmt.Println("  Esc                   Cancel a running question")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY        Required: Gemini API key")
	fmt.Println("  GEMINI_API_KEY_1..6   Optional: per-stage key slots")
	fmt.Println("  HISTORY_URL           Optional: PostgreSQL DSN for the chat log")
	fmt.Println("  DEBUG                 Optional: Enable debug logging")
}
