package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/ui"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Create one agent per line of an instruction file",
	Long: `Batch reads instructions from a file (or stdin with --file -), one per
line, and runs them concurrently. Blank lines and lines starting with #
are skipped. A failed request does not stop the others.

Example:
  genesis batch --file instructions.txt --concurrency 2 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("file")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		instructions, err := readInstructionFile(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(instructions) == 0 {
			return fmt.Errorf("no instructions found in %s", path)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		svc, err := openServices(ctx, settings)
		if err != nil {
			return err
		}
		defer svc.Close()

		items, runErr := svc.create.CreateBatch(ctx, instructions, concurrency)
		if err := printOutput(cmd.OutOrStdout(), output, items, func() string { return ui.RenderBatch(items) }); err != nil {
			return err
		}
		if runErr != nil {
			return fmt.Errorf("batch interrupted: %w", runErr)
		}
		for _, it := range items {
			if !it.Succeeded() {
				return errNotCreated
			}
		}
		return nil
	},
}

func readInstructionFile(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return app.ReadInstructions(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instruction file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return app.ReadInstructions(f)
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringP("file", "f", "", "file with one instruction per line (- for stdin)")
	batchCmd.Flags().Int("concurrency", app.DefaultBatchConcurrency, "requests to run at once")
	batchCmd.Flags().StringP("output", "o", outputText, "output format: text, json or yaml")
	_ = batchCmd.MarkFlagRequired("file")
}
