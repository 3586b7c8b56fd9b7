/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/logger"
	"github.com/josephgoksu/genesis/internal/telemetry"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables debug logging and detailed errors.
	verbose bool
	// version is the application version.
	version = "0.1.0"
)

// skipConfigAnnotation marks commands that must run even with an invalid
// configuration, such as `config init`.
const skipConfigAnnotation = "genesis/skip-config"

var rootCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Genesis - build, test and register agents from plain instructions",
	Long: `Genesis turns a natural-language instruction into a registered agent.

Each request is interpreted into a structured instruction, built into an
agent specification, matched to a model, then quizzed with generated test
questions. Specifications that fail QA are adjusted and retested until they
pass or run out of attempts. Accepted agents pass the admission policies
and are stored in the local registry.

  genesis create "Review Go pull requests for concurrency bugs"
  genesis agents list
  genesis serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetCommand(cmd.CommandPath())
		err := initConfig()
		if err != nil && cmd.Annotations[skipConfigAnnotation] == "true" {
			slog.Debug("continuing with invalid configuration", "error", err)
			return nil
		}
		return err
	},
}

// Execute runs the root command. Called by main.main.
func Execute() {
	defer logger.HandlePanic()
	logger.SetVersion(version)

	start := time.Now()
	cmd, err := rootCmd.ExecuteC()
	if settings != nil && cmd != nil {
		telemetry.TrackCommand(telemetryClient(), cmd.CommandPath(), time.Since(start), err)
	}
	closeTelemetry()
	if err != nil {
		PrintError(err)
		os.Exit(exitCode(err))
	}
}

// GetVersion returns the CLI version.
func GetVersion() string {
	return version
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.genesis/.genesis.yaml, $HOME/.genesis.yaml or ./.genesis.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("genesis version %s\n", version))
	rootCmd.Version = version
}
