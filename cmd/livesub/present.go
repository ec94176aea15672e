package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/livesub/pkg/livesub"
	"github.com/spf13/cobra"
)

func newPresentCommand(ctx *commandContext) *cobra.Command {
	var provider string
	var language string
	var relayURL string
	var export bool
	var exportDir string

	cmd := &cobra.Command{
		Use:   "present",
		Short: "Caption speech and broadcast finalized lines to the relay",
		Long: "Runs a presenter session. With the stdin provider each input line is a final\n" +
			"result and lines starting with \"~\" are interim text. The lines /pause, /resume,\n" +
			"/toggle and /lang <code> control the session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if provider != "" {
				cfg.Recognition.Provider = provider
			}
			if language != "" {
				cfg.Recognition.Language = language
			}
			if relayURL != "" {
				cfg.Presenter.BroadcastURL = relayURL
			}
			if cmd.Flags().Changed("export") {
				cfg.Presenter.ExportOnStop = export
			}
			if exportDir != "" {
				cfg.Presenter.ExportDir = exportDir
			}

			engine, err := ctx.registry(cmd.InOrStdin()).BuildEngine(cfg.Recognition.Provider, cfg)
			if err != nil {
				return err
			}
			obs, err := ctx.observability()
			if err != nil {
				return err
			}
			p, err := livesub.NewPresenter(livesub.PresenterOptions{
				Config:   cfg,
				Engine:   engine,
				Viewport: newTerminalViewport(cmd.OutOrStdout()),
				Observer: obs.Observer,
				Logger:   ctx.logger,
			})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := p.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if !cfg.Presenter.ExportOnStop {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d lines captioned\n", p.Transcript().Count())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Recognition provider (stdin, deepgram, mock)")
	cmd.Flags().StringVarP(&language, "lang", "l", "", "Recognition language, e.g. en-US")
	cmd.Flags().StringVar(&relayURL, "relay", "", "Relay WebSocket URL (overrides presenter.broadcast_url)")
	cmd.Flags().BoolVar(&export, "export", false, "Write the transcript to a file when the session ends")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "Directory for transcript exports")
	return cmd
}
