package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/livesub/pkg/redact"
	"github.com/harunnryd/livesub/pkg/transports/relay"
	"github.com/harunnryd/livesub/pkg/transports/twilio"
	"github.com/spf13/cobra"
)

func newShareCommand(ctx *commandContext) *cobra.Command {
	var to []string
	var url string

	cmd := &cobra.Command{
		Use:   "share",
		Short: "Text the student join link by SMS",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(to) == 0 {
				return fmt.Errorf("at least one --to number is required")
			}
			link := strings.TrimSpace(url)
			if link == "" {
				link = relay.New(cfg.Server).ConnectionInfo().StudentURL
			}

			sharer := twilio.NewSharer(cfg.Share, ctx.logger)
			for _, number := range to {
				sid, err := sharer.SendJoinLink(cmd.Context(), number, link)
				if err != nil {
					return fmt.Errorf("send to %s: %w", redact.Text(number), err)
				}
				ctx.logger.Info("share_sent", slog.String("sid", sid), redact.Attr("to", number))
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %s (%s)\n", link, sid)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&to, "to", nil, "Recipient phone number in E.164 form (repeatable)")
	cmd.Flags().StringVar(&url, "url", "", "Join link to send (defaults to the relay's student URL)")
	return cmd
}
