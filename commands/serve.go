package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matrixor/tsg-officer/rules"
	"github.com/matrixor/tsg-officer/workflow"
)

func newServeCmd(configPath, logLevel *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the case API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, *configPath, *logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			printBanner(cmd.OutOrStdout())

			if app.Config.Rules.Watch {
				watcher, err := rules.NewWatcher(app.Rules, app.Config.Rules.Dir, app.Logger)
				if err != nil {
					return fmt.Errorf("watch rules: %w", err)
				}
				go watcher.Run(ctx)
			}

			mux := http.NewServeMux()
			workflow.NewAPIHandler(app.Engine, app.Logger, app.Config.Server.MaxBodyBytes).Register(mux)

			listenAddr := app.Config.Server.Addr
			if addr != "" {
				listenAddr = addr
			}
			srv := &http.Server{
				Addr:              listenAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				app.Logger.Info("http server listening", "addr", listenAddr, "durable", app.Engine.Durable())
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			app.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func printBanner(w io.Writer) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║           TSG Officer v"+appVersion+"                   ║")
	fmt.Fprintln(w, "║      Compliance Intake Workflow Engine        ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════╝")
}
