package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/admission"
	"github.com/josephgoksu/genesis/internal/config"
	"github.com/josephgoksu/genesis/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the creation API and the agent registry over HTTP",
	Long: `Serve starts an HTTP API:

  POST /api/agents             create an agent ({"instruction": "..."})
  GET  /api/agents             list agents (?type=, ?limit=)
  GET  /api/agents/{id}        agent details
  GET  /api/agents/{id}/audit  audit trail and admission decisions
  GET  /agents/{id}            agent card at the registered endpoint
  GET  /healthz                liveness
  GET  /metrics                Prometheus metrics

Admission policies and the log level are reloaded when their files change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = settings.Server.Addr
		}
		origins, _ := cmd.Flags().GetStringSlice("allow-origin")
		timeout, _ := cmd.Flags().GetDuration("request-timeout")

		svc, err := openServices(ctx, settings)
		if err != nil {
			return err
		}
		defer svc.Close()

		watchConfig(func() {
			if err := svc.engine.Reload(ctx); err != nil {
				slog.Error("policy reload failed, keeping previous policies", "error", err)
			}
		})
		if w := startPolicyWatcher(ctx, svc.engine); w != nil {
			defer w.Stop()
		}

		srv := server.New(server.Config{
			Addr:           addr,
			Version:        version,
			AllowedOrigins: origins,
			RequestTimeout: timeout,
			Metrics:        svc.metrics.Handler(),
		}, svc.create, svc.store)

		var wg sync.WaitGroup
		errChan := make(chan error, 1)
		srv.Start(&wg, errChan)
		fmt.Fprintf(cmd.ErrOrStderr(), "🚀 genesis API on http://%s (registry %s)\n", addr, svc.store.Path())

		select {
		case err = <-errChan:
		case <-ctx.Done():
			slog.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			slog.Warn("graceful shutdown failed", "error", serr)
		}
		wg.Wait()
		return err
	},
}

// startPolicyWatcher reloads policies on .rego edits. The directory must
// already exist; `genesis policy init` creates it.
func startPolicyWatcher(ctx context.Context, engine *admission.Engine) *admission.Watcher {
	dir := config.PoliciesDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		slog.Debug("policy directory missing, not watching", "dir", dir)
		return nil
	}
	w, err := admission.NewWatcher(dir, engine, nil)
	if err != nil {
		slog.Warn("cannot watch policies", "dir", dir, "error", err)
		return nil
	}
	w.Start(ctx)
	return w
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")
	serveCmd.Flags().StringSlice("allow-origin", nil, "CORS origins allowed to call the API")
	serveCmd.Flags().Duration("request-timeout", 10*time.Minute, "limit for one creation request (0 disables)")
}
