// Package cmd provides the lectern CLI commands.
//
// Commands:
//   - serve: HTTP API server for queries and catalog analytics
//   - ingest: load course documents into the vector index
//   - ask: one-shot question from the terminal
//   - mcp: Model Context Protocol server for IDE integration
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the entry point for the lectern CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ingest":
		return runIngest()
	case "ask":
		return runAsk()
	case "mcp":
		return runMCP()
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
	fmt.Println("Lectern - course materials assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lectern serve [addr]   Start HTTP API server (default: 127.0.0.1:8000)")
	fmt.Println("  lectern ingest [dir]   Load course documents into the index")
	fmt.Println("  lectern ask <question> Ask a one-shot question")
	fmt.Println("  lectern mcp            Start MCP server (for Claude Desktop/Cursor)")
	fmt.Println("  lectern --version      Show version information")
	fmt.Println("  lectern --help         Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY         Required for the gemini provider")
	fmt.Println("  DATABASE_URL           Optional: PostgreSQL connection URL")
	fmt.Println("  DEBUG                  Optional: enable debug logging")
}
