package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/livesub/pkg/caption"
	"github.com/harunnryd/livesub/pkg/transcript"
	"github.com/harunnryd/livesub/pkg/transports"
	"github.com/harunnryd/livesub/pkg/transports/receiver"
	"github.com/spf13/cobra"
)

func newListenCommand(ctx *commandContext) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Follow live captions from the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Receiver.URL = url
			}
			obs, err := ctx.observability()
			if err != nil {
				return err
			}

			view := newTerminalViewport(cmd.OutOrStdout())
			store := transcript.New(transcript.Config{MaxLines: cfg.Presenter.MaxLines},
				transcript.WithViewport(view),
				transcript.WithObserver(obs.Observer),
				transcript.WithLogger(ctx.logger))

			client := receiver.New(cfg.Receiver, func(env caption.Envelope) {
				store.AddLine(env.Line)
			},
				receiver.WithObserver(obs.Observer),
				receiver.WithLogger(ctx.logger),
				receiver.OnState(func(state transports.State, retry int) {
					if state == transports.StateConnecting && retry > 0 {
						view.SetLive("reconnecting...")
						return
					}
					if state == transports.StateOpen {
						view.SetLive("")
					}
					ctx.logger.Debug("listen_state", slog.String("state", string(state)), slog.Int("retry", retry))
				}))

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := client.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Relay WebSocket URL (overrides receiver.url)")
	return cmd
}
