package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/audit"
	"github.com/josephgoksu/genesis/internal/ui"
)

var createCmd = &cobra.Command{
	Use:   "create [instruction]",
	Short: "Create an agent from a natural-language instruction",
	Long: `Create runs the full pipeline for one instruction: interpret, build,
select a model, run QA with automatic adjustment, then register.

The instruction is read from the arguments, or from stdin when no
arguments are given.

Examples:
  genesis create "Translate customer emails from German to English"
  echo "Summarise weekly sales reports" | genesis create -o json
  genesis create --tui "Review Terraform plans for risky changes"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}
		instruction, err := readInstruction(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		svc, err := openServices(ctx, settings)
		if err != nil {
			return err
		}
		defer svc.Close()

		requestID, _ := cmd.Flags().GetString("request-id")
		opts := app.CreateOptions{RequestID: requestID}

		useTUI, _ := cmd.Flags().GetBool("tui")
		var res *app.CreateResult
		switch {
		case useTUI && ui.IsInteractive():
			res, err = createWithProgress(ctx, cmd.ErrOrStderr(), svc.create, instruction, opts)
		case output == outputText && ui.IsTerminal(os.Stderr):
			res, err = createWithSpinner(ctx, cmd.ErrOrStderr(), svc.create, instruction, opts)
		default:
			res, err = svc.create.Create(ctx, instruction, opts)
		}
		if err != nil {
			return err
		}

		if err := printOutput(cmd.OutOrStdout(), output, res, func() string { return ui.RenderCreateResult(res) }); err != nil {
			return err
		}
		if !res.Success {
			return errNotCreated
		}
		return nil
	},
}

func readInstruction(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := in.(*os.File); ok && ui.IsTerminal(f) {
		return "", fmt.Errorf("no instruction given; pass it as an argument or pipe it on stdin")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read instruction from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func createWithSpinner(ctx context.Context, out io.Writer, a *app.CreateApp, instruction string, opts app.CreateOptions) (*app.CreateResult, error) {
	sp := ui.NewSpinner(out, "Creating agent...")
	progress := audit.RecorderFunc(func(e audit.Event) {
		if line, ok := ui.DescribeEvent(e); ok {
			sp.SetSuffix(line)
		}
	})
	opts.Sinks = append(opts.Sinks, progress)

	sp.Start()
	defer sp.Stop()
	return a.Create(ctx, instruction, opts)
}

func createWithProgress(ctx context.Context, out io.Writer, a *app.CreateApp, instruction string, opts app.CreateOptions) (*app.CreateResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := audit.NewStream(64)
	opts.Sinks = append(opts.Sinks, stream)
	run := func() (*app.CreateResult, error) {
		defer stream.Close()
		return a.Create(ctx, instruction, opts)
	}
	return ui.RunProgress(ctx, out, stream.Events(), run, cancel)
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringP("output", "o", outputText, "output format: text, json or yaml")
	createCmd.Flags().Bool("tui", false, "show live pipeline progress")
	createCmd.Flags().String("request-id", "", "request id to use instead of a generated one")
	createCmd.Flags().Duration("timeout", 10*time.Minute, "abort the request after this long (0 disables)")
}
