package config

import (
	"fmt"
	"os"
	"strconv"
)

const defaultServerPort = "8088"

// ServerConfig holds the settings of the development oracle server.
// It carries no signing material, so it never touches Secret Manager.
type ServerConfig struct {
	Port        string // Listen port
	Environment string
	LogLevel    string

	// ScriptedSettlement also serves the scripted settlement tool at /sse
	ScriptedSettlement bool
	Tool               string // Tool name the scripted backend answers
}

// LoadServer reads the oracle server settings from environment variables.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:        envOrDefault("PORT", defaultServerPort),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		Tool:        envOrDefault("MCP_TOOL", defaultMCPTool),
	}

	if v := os.Getenv("SCRIPTED_SETTLEMENT"); v != "" {
		var err error
		if cfg.ScriptedSettlement, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("parsing SCRIPTED_SETTLEMENT: %w", err)
		}
	}

	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", cfg.Port)
	}

	return cfg, nil
}
