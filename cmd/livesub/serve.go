package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/livesub/pkg/runner"
	"github.com/harunnryd/livesub/pkg/transports"
	"github.com/harunnryd/livesub/pkg/transports/relay"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the caption relay and serve the student page",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.ServerAddr = addr
			}
			if staticDir != "" {
				cfg.Server.StaticDir = staticDir
			}
			obs, err := ctx.observability()
			if err != nil {
				return err
			}

			srv := relay.New(cfg.Server, relay.WithObserver(obs.Observer), relay.WithLogger(ctx.logger))
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lc := runner.NewLifecycleRunner(srv, runner.Hooks{
				OnStart: func() error {
					return startServer(runCtx, cmd, srv)
				},
				OnStop: func() {
					ctx.logger.Info("relay_stopped", slog.Int("sessions", srv.Count()))
				},
			}, 0, runner.WithBanner(cmd.OutOrStdout()))

			if err := lc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.server_addr)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of built front-end assets (overrides server.static_dir)")
	return cmd
}

func startServer(ctx context.Context, cmd *cobra.Command, srv transports.Server) error {
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", srv.Name(), err)
	}
	fields := []any{slog.String("server", srv.Name())}
	if rr, ok := srv.(transports.ReadyReporter); ok {
		ready := rr.ReadyFields()
		for k, v := range ready {
			fields = append(fields, slog.Any(k, v))
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Endpoint", "URL"},
			[][]string{
				{"Student page", fmt.Sprint(ready["student_url"])},
				{"WebSocket", fmt.Sprint(ready["ws_url"])},
			},
			nil,
		))
	}
	slog.Info("livesub_ready", fields...)
	return nil
}

var _ transports.Server = (*relay.Relay)(nil)
