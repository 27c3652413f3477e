package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Inspect or drive the completion oracle",
}

var oracleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the settlement has finished",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		finished, err := newOracleClient(cfg, logger).CheckFinished(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "finished: %t\n", finished)
		return nil
	},
}

var oracleResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the completion flag",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newOracleClient(cfg, logger).Reset(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.success.Render(fmt.Sprintf("✓ reset (status: %t)", status)))
		return nil
	},
}

var oracleNotifyCmd = &cobra.Command{
	Use:   "notify [json-body]",
	Short: "Mark the settlement finished, as the settlement backend would",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload any = map[string]string{}
		if len(args) == 1 {
			if err := json.Unmarshal([]byte(args[0]), &payload); err != nil {
				return fmt.Errorf("invalid notify body: %w", err)
			}
		}
		if err := newOracleClient(cfg, logger).Notify(cmd.Context(), payload); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.success.Render("✓ notified"))
		return nil
	},
}

func init() {
	oracleCmd.AddCommand(oracleStatusCmd)
	oracleCmd.AddCommand(oracleResetCmd)
	oracleCmd.AddCommand(oracleNotifyCmd)
}
