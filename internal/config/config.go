// Package config handles loading and validation of client configuration.
// Supports both development (env vars or file) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"gopkg.in/yaml.v3"

	"zen7-console/internal/model"
)

// Transport names accepted in configuration.
const (
	TransportA2A = "a2a"
	TransportMCP = "mcp"
)

// Oracle policies for an unreachable completion oracle.
const (
	OraclePolicyFailOpen   = "fail-open"
	OraclePolicyFailClosed = "fail-closed"
)

const (
	defaultA2ABaseURL    = "http://localhost:10000"
	defaultA2ATimeout    = 100 * time.Second
	defaultMCPHost       = "127.0.0.1"
	defaultMCPPort       = 8015
	defaultMCPTool       = "proceed_payment_and_settlement_detail_info"
	defaultMCPTimeout    = 100 * time.Second
	defaultOracleURL     = "http://localhost:8088"
	defaultOracleTimeout = 5 * time.Second
	defaultUserID        = "user_02"
	defaultOrderPrefix   = "A030-"
	defaultCurrency      = "USDC"
	defaultChain         = "ethereum"
	defaultTimezone      = "UTC"
	defaultExpiryWindow  = 24 * time.Hour
	defaultSignerSecret  = "negotiation-signer"
)

// Config holds all client configuration.
// Environment determines whether signing material loads from env vars (development) or Secret Manager (production).
type Config struct {
	// Process settings
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject     string
	SignerSecretID string

	// Transport selects the settlement binding: "a2a" or "mcp"
	Transport string

	A2A     A2AConfig
	MCP     MCPConfig
	Oracle  OracleConfig
	Payment PaymentConfig

	// Signing material (loaded from secrets in production)
	Signer SignerConfig
}

// A2AConfig configures the direct JSON-RPC transport.
type A2AConfig struct {
	BaseURL   string
	Timeout   time.Duration
	ChromeTLS bool // Use the browser TLS fingerprint for HTTPS endpoints
}

// MCPConfig configures the session tool transport.
type MCPConfig struct {
	Host    string
	Port    int
	Tool    string
	Timeout time.Duration
}

// OracleConfig configures the completion oracle client.
type OracleConfig struct {
	URL     string
	Timeout time.Duration
	Policy  string // "fail-open" or "fail-closed"
}

// PaymentConfig holds the values stamped on the structured payment request.
type PaymentConfig struct {
	UserID       string
	OrderPrefix  string
	Currency     string
	Chain        string
	Timezone     string
	ExpiryWindow time.Duration
}

// SignerConfig contains the signer's authorization material.
// In production, this is loaded from Secret Manager as JSON.
type SignerConfig struct {
	SignInfo           model.SignInfo `json:"sign_info" yaml:"sign_info"`
	OwnerWalletAddress string         `json:"owner_wallet_address,omitempty" yaml:"owner_wallet_address,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all fields and returns an error on the first problem.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Environment:    envOrDefault("ENVIRONMENT", "development"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		GCPProject:     os.Getenv("GCP_PROJECT"),
		SignerSecretID: envOrDefault("SIGNER_SECRET_ID", defaultSignerSecret),
		Transport:      envOrDefault("TRANSPORT", TransportA2A),
		A2A: A2AConfig{
			BaseURL: envOrDefault("A2A_BASE_URL", defaultA2ABaseURL),
		},
		MCP: MCPConfig{
			Host: envOrDefault("MCP_HOST", defaultMCPHost),
			Tool: envOrDefault("MCP_TOOL", defaultMCPTool),
		},
		Oracle: OracleConfig{
			URL:    envOrDefault("ORACLE_URL", defaultOracleURL),
			Policy: envOrDefault("ORACLE_POLICY", OraclePolicyFailOpen),
		},
		Payment: PaymentConfig{
			UserID:      envOrDefault("USER_ID", defaultUserID),
			OrderPrefix: envOrDefault("ORDER_PREFIX", defaultOrderPrefix),
			Currency:    envOrDefault("CURRENCY", defaultCurrency),
			Chain:       envOrDefault("CHAIN", defaultChain),
			Timezone:    envOrDefault("TIMEZONE", defaultTimezone),
		},
	}

	var err error
	if cfg.A2A.Timeout, err = envDuration("A2A_TIMEOUT", defaultA2ATimeout); err != nil {
		return nil, err
	}
	if cfg.MCP.Timeout, err = envDuration("MCP_TIMEOUT", defaultMCPTimeout); err != nil {
		return nil, err
	}
	if cfg.Oracle.Timeout, err = envDuration("ORACLE_TIMEOUT", defaultOracleTimeout); err != nil {
		return nil, err
	}
	if cfg.Payment.ExpiryWindow, err = envDuration("PAYMENT_EXPIRY", defaultExpiryWindow); err != nil {
		return nil, err
	}
	if cfg.MCP.Port, err = envInt("MCP_PORT", defaultMCPPort); err != nil {
		return nil, err
	}
	if v := os.Getenv("A2A_CHROME_TLS"); v != "" {
		if cfg.A2A.ChromeTLS, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("parsing A2A_CHROME_TLS: %w", err)
		}
	}

	// Load signing material based on environment
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading signer config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fileConfig mirrors the on-disk layout. Durations are strings ("100s", "24h").
type fileConfig struct {
	Environment string `json:"environment" yaml:"environment"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	Transport   string `json:"transport" yaml:"transport"`

	A2A struct {
		BaseURL   string `json:"base_url" yaml:"base_url"`
		Timeout   string `json:"timeout" yaml:"timeout"`
		ChromeTLS bool   `json:"chrome_tls" yaml:"chrome_tls"`
	} `json:"a2a" yaml:"a2a"`

	MCP struct {
		Host    string `json:"host" yaml:"host"`
		Port    int    `json:"port" yaml:"port"`
		Tool    string `json:"tool" yaml:"tool"`
		Timeout string `json:"timeout" yaml:"timeout"`
	} `json:"mcp" yaml:"mcp"`

	Oracle struct {
		URL     string `json:"url" yaml:"url"`
		Timeout string `json:"timeout" yaml:"timeout"`
		Policy  string `json:"policy" yaml:"policy"`
	} `json:"oracle" yaml:"oracle"`

	Payment struct {
		UserID       string `json:"user_id" yaml:"user_id"`
		OrderPrefix  string `json:"order_prefix" yaml:"order_prefix"`
		Currency     string `json:"currency" yaml:"currency"`
		Chain        string `json:"chain" yaml:"chain"`
		Timezone     string `json:"timezone" yaml:"timezone"`
		ExpiryWindow string `json:"expiry_window" yaml:"expiry_window"`
	} `json:"payment" yaml:"payment"`

	Signer SignerConfig `json:"signer" yaml:"signer"`
}

// loadFromFile reads all configuration from a JSON or YAML file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Environment: withDefault(fc.Environment, "development"),
		LogLevel:    withDefault(fc.LogLevel, "info"),
		Transport:   withDefault(fc.Transport, TransportA2A),
		A2A: A2AConfig{
			BaseURL:   withDefault(fc.A2A.BaseURL, defaultA2ABaseURL),
			ChromeTLS: fc.A2A.ChromeTLS,
		},
		MCP: MCPConfig{
			Host: withDefault(fc.MCP.Host, defaultMCPHost),
			Port: fc.MCP.Port,
			Tool: withDefault(fc.MCP.Tool, defaultMCPTool),
		},
		Oracle: OracleConfig{
			URL:    withDefault(fc.Oracle.URL, defaultOracleURL),
			Policy: withDefault(fc.Oracle.Policy, OraclePolicyFailOpen),
		},
		Payment: PaymentConfig{
			UserID:      withDefault(fc.Payment.UserID, defaultUserID),
			OrderPrefix: withDefault(fc.Payment.OrderPrefix, defaultOrderPrefix),
			Currency:    withDefault(fc.Payment.Currency, defaultCurrency),
			Chain:       withDefault(fc.Payment.Chain, defaultChain),
			Timezone:    withDefault(fc.Payment.Timezone, defaultTimezone),
		},
		Signer: fc.Signer,
	}
	if cfg.MCP.Port == 0 {
		cfg.MCP.Port = defaultMCPPort
	}

	durations := []struct {
		field string
		raw   string
		def   time.Duration
		dst   *time.Duration
	}{
		{"a2a.timeout", fc.A2A.Timeout, defaultA2ATimeout, &cfg.A2A.Timeout},
		{"mcp.timeout", fc.MCP.Timeout, defaultMCPTimeout, &cfg.MCP.Timeout},
		{"oracle.timeout", fc.Oracle.Timeout, defaultOracleTimeout, &cfg.Oracle.Timeout},
		{"payment.expiry_window", fc.Payment.ExpiryWindow, defaultExpiryWindow, &cfg.Payment.ExpiryWindow},
	}
	for _, d := range durations {
		v, err := parseDuration(d.raw, d.def)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", d.field, err)
		}
		*d.dst = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches signing material from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{signer_secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SignerSecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Signer); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if c.Signer.SignInfo.IsZero() {
		return fmt.Errorf("secret %s has no sign_info", secretName)
	}

	return nil
}

// loadFromEnv reads signing material from environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Signer.OwnerWalletAddress = os.Getenv("OWNER_WALLET_ADDRESS")

	if signJSON := os.Getenv("SIGN_INFO"); signJSON != "" {
		if err := json.Unmarshal([]byte(signJSON), &c.Signer.SignInfo); err != nil {
			return fmt.Errorf("parsing SIGN_INFO JSON: %w", err)
		}
	}

	return nil
}

// validate checks that every field holds a usable value.
func (c *Config) validate() error {
	switch c.Transport {
	case TransportA2A, TransportMCP:
	default:
		return fmt.Errorf("transport must be %q or %q, got %q", TransportA2A, TransportMCP, c.Transport)
	}

	switch c.Oracle.Policy {
	case OraclePolicyFailOpen, OraclePolicyFailClosed:
	default:
		return fmt.Errorf("oracle policy must be %q or %q, got %q",
			OraclePolicyFailOpen, OraclePolicyFailClosed, c.Oracle.Policy)
	}

	if err := validateURL("a2a base_url", c.A2A.BaseURL); err != nil {
		return err
	}
	if err := validateURL("oracle url", c.Oracle.URL); err != nil {
		return err
	}

	if c.MCP.Host == "" {
		return fmt.Errorf("mcp host is required")
	}
	if c.MCP.Port <= 0 || c.MCP.Port > 65535 {
		return fmt.Errorf("mcp port out of range: %d", c.MCP.Port)
	}
	if c.MCP.Tool == "" {
		return fmt.Errorf("mcp tool is required")
	}

	if c.Payment.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.Payment.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if _, err := time.LoadLocation(c.Payment.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"a2a timeout":    c.A2A.Timeout,
		"mcp timeout":    c.MCP.Timeout,
		"oracle timeout": c.Oracle.Timeout,
		"expiry window":  c.Payment.ExpiryWindow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

// validateURL requires an absolute http(s) URL.
func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", field)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: missing host", field)
	}
	return nil
}

// BuildComposerConfig creates the configuration used by the message composer.
// validate has already accepted the timezone, so the location lookup cannot fail here.
func (c *Config) BuildComposerConfig() *model.ComposerConfig {
	loc, err := time.LoadLocation(c.Payment.Timezone)
	if err != nil {
		loc = time.UTC
	}

	return &model.ComposerConfig{
		UserID:       c.Payment.UserID,
		OrderPrefix:  c.Payment.OrderPrefix,
		Currency:     c.Payment.Currency,
		Chain:        c.Payment.Chain,
		Timezone:     c.Payment.Timezone,
		Location:     loc,
		ExpiryWindow: c.Payment.ExpiryWindow,
		SignInfo:     c.Signer.SignInfo,
	}
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envDuration parses a duration environment variable.
func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := parseDuration(os.Getenv(key), defaultVal)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

// envInt parses an integer environment variable.
func envInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

// parseDuration accepts Go duration strings; a bare integer is read as seconds.
func parseDuration(raw string, defaultVal time.Duration) (time.Duration, error) {
	if raw == "" {
		return defaultVal, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
