/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/telemetry"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage anonymous usage statistics",
	Long: `Genesis can send anonymous pipeline outcomes (success, retry count,
failure kind, token totals) to improve the retry strategies. Instructions,
prompts and agent specifications are never sent. Telemetry is off until
you enable it.`,
}

var telemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current telemetry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := telemetry.Load()
		if err != nil {
			return fmt.Errorf("failed to read telemetry status: %w", err)
		}
		switch {
		case !cfg.ConsentAsked:
			cmd.Println("📊 Telemetry: not configured (off)")
			cmd.Println("   To enable: genesis telemetry enable")
		case cfg.Enabled && !cfg.IsEnabled():
			cmd.Printf("📊 Telemetry: off (%s is set)\n", telemetry.DoNotTrackEnv)
		case cfg.IsEnabled():
			cmd.Println("📊 Telemetry: enabled")
			cmd.Printf("   Anonymous ID: %s\n", cfg.AnonymousID)
			cmd.Println("   To disable: genesis telemetry disable")
		default:
			cmd.Println("📊 Telemetry: disabled")
			cmd.Println("   To enable: genesis telemetry enable")
		}
		return nil
	},
}

var telemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setTelemetry(true); err != nil {
			return fmt.Errorf("failed to enable telemetry: %w", err)
		}
		cmd.Println("✅ Telemetry enabled. Thank you for helping improve genesis!")
		return nil
	},
}

var telemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setTelemetry(false); err != nil {
			return fmt.Errorf("failed to disable telemetry: %w", err)
		}
		cmd.Println("✅ Telemetry disabled.")
		return nil
	},
}

func setTelemetry(enabled bool) error {
	cfg, err := telemetry.Load()
	if err != nil {
		return err
	}
	if enabled {
		cfg.Enable()
	} else {
		cfg.Disable()
	}
	return cfg.Save()
}

func init() {
	rootCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetryStatusCmd, telemetryEnableCmd, telemetryDisableCmd)
}
