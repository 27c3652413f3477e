package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"zen7-console/internal/a2a"
)

var cardJSON bool

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Resolve and print the settlement agent card",
	RunE:  cardRun,
}

func init() {
	cardCmd.Flags().BoolVar(&cardJSON, "json", false, "print the raw card as JSON")
}

func cardRun(cmd *cobra.Command, args []string) error {
	card, err := newDirectClient(cfg, logger).ResolveCapabilities(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cardJSON {
		data, err := json.MarshalIndent(card, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding card: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, ui.agent.Render(a2a.DescribeCard(card)))
	fmt.Fprintln(out)
	return nil
}
