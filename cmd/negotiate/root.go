package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"zen7-console/internal/a2a"
	"zen7-console/internal/config"
	"zen7-console/internal/mcptool"
	"zen7-console/internal/negotiation"
	"zen7-console/internal/oracle"
	"zen7-console/internal/settlement"
	"zen7-console/internal/transport"
)

// Global flags (apply to all commands)
var (
	transportOverride string
	verbose           bool
	noColor           bool
)

// Loaded in PersistentPreRunE
var (
	cfg    *config.Config
	logger *slog.Logger
	ui     theme

	// One card cache per process, shared by every direct client
	cardResolver *a2a.CardResolver
)

var rootCmd = &cobra.Command{
	Use:           "negotiate",
	Short:         "Negotiate settlements with a remote payment agent",
	Long:          "negotiate drives multi-turn payment negotiations over the direct (a2a) or session tool (mcp) transport.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui = newTheme(!noColor && os.Getenv("NO_COLOR") == "")
		logger = initLogger(os.Getenv("LOG_LEVEL"), verbose)
		slog.SetDefault(logger)

		loaded, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if transportOverride != "" {
			loaded.Transport = transportOverride
		}
		cfg = loaded
		cardResolver = a2a.NewCardResolver(
			transport.NewHTTPClient(cfg.A2A.Timeout, cfg.A2A.ChromeTLS),
			a2a.DefaultCardTTL,
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&transportOverride, "transport", "t", "", "settlement transport: a2a or mcp (default from TRANSPORT)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(cardCmd)
	rootCmd.AddCommand(oracleCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err.Render("✗ "+err.Error()))
		os.Exit(1)
	}
}

// newSettlementClient builds the transport selected by cfg.Transport.
func newSettlementClient(cfg *config.Config, logger *slog.Logger) (settlement.Client, error) {
	switch cfg.Transport {
	case config.TransportA2A:
		return newDirectClient(cfg, logger), nil
	case config.TransportMCP:
		return mcptool.New(mcptool.Config{
			Host:               cfg.MCP.Host,
			Port:               cfg.MCP.Port,
			ToolName:           cfg.MCP.Tool,
			Timeout:            cfg.MCP.Timeout,
			OwnerWalletAddress: cfg.Signer.OwnerWalletAddress,
			Logger:             logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}

func newDirectClient(cfg *config.Config, logger *slog.Logger) *a2a.Client {
	return a2a.New(a2a.Config{
		BaseURL:    cfg.A2A.BaseURL,
		Timeout:    cfg.A2A.Timeout,
		HTTPClient: transport.NewHTTPClient(cfg.A2A.Timeout, cfg.A2A.ChromeTLS),
		Resolver:   cardResolver,
		Logger:     logger,
	})
}

func newOracleClient(cfg *config.Config, logger *slog.Logger) *oracle.Client {
	return oracle.NewClient(cfg.Oracle.URL, transport.NewHTTPClient(cfg.Oracle.Timeout, false), logger)
}

// newNegotiator wires the configured transport, oracle, and composer.
func newNegotiator(cfg *config.Config, logger *slog.Logger) (*negotiation.Negotiator, error) {
	client, err := newSettlementClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return negotiation.NewNegotiator(
		client,
		newOracleClient(cfg, logger),
		negotiation.NewComposer(cfg.BuildComposerConfig()),
		negotiation.Options{
			Policy: negotiation.OraclePolicy(cfg.Oracle.Policy),
			Logger: logger,
		},
	), nil
}
