// negotiate is a terminal client for settlement negotiations.
// Each command loads configuration the same way (CONFIG_FILE or env vars)
// and talks to the configured settlement service and completion oracle.
//
// Commands:
//
//	negotiate chat [--transport a2a|mcp] [--item-id N --item-name S --price N --payee S]
//	negotiate card [--json]
//	negotiate oracle status|reset|notify [body]
//
// Examples:
//
//	negotiate chat
//	TRANSPORT=mcp MCP_PORT=8088 negotiate chat --item-id 5
//	negotiate oracle notify '{"order_number":"A030-5"}'
package main

import (
	"log/slog"
	"os"
)

func main() {
	Execute()
}

// initLogger creates a structured logger on stderr so chat output stays clean.
// LOG_LEVEL=debug (or --verbose) adds source locations; production uses JSON.
func initLogger(levelName string, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if levelName != "" {
		if err := level.UnmarshalText([]byte(levelName)); err != nil {
			level = slog.LevelWarn
		}
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
