// Package twilio sends the student join link by SMS.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/livesub/pkg/errorsx"
	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

const DefaultTemplate = "Join the live captions: %s"

type Config struct {
	AccountSID          string `mapstructure:"account_sid"`
	AuthToken           string `mapstructure:"auth_token"`
	From                string `mapstructure:"from"`
	MessagingServiceSID string `mapstructure:"messaging_service_sid"`
	// Template is a fmt pattern with a single %s for the join URL.
	Template string `mapstructure:"template"`
}

func (c Config) withDefaults() Config {
	if c.Template == "" || !strings.Contains(c.Template, "%s") {
		c.Template = DefaultTemplate
	}
	return c
}

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// Sharer sends join links through the Twilio Messages API.
type Sharer struct {
	cfg    Config
	client messageCreator
	logger *slog.Logger
}

func NewSharer(cfg Config, logger *slog.Logger) *Sharer {
	return &Sharer{cfg: cfg.withDefaults(), logger: logging.NewComponentLogger(logger, "share")}
}

// SendJoinLink texts studentURL to the given number and returns the message sid.
func (s *Sharer) SendJoinLink(ctx context.Context, to, studentURL string) (string, error) {
	_ = ctx
	to = strings.TrimSpace(to)
	if to == "" {
		return "", errors.New("recipient required")
	}
	if strings.TrimSpace(studentURL) == "" {
		return "", errors.New("student url required")
	}
	if s.cfg.From == "" && s.cfg.MessagingServiceSID == "" {
		return "", errors.New("share.from or share.messaging_service_sid required")
	}
	client := s.client
	if client == nil {
		if s.cfg.AccountSID == "" || s.cfg.AuthToken == "" {
			return "", errors.New("missing twilio credentials")
		}
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: s.cfg.AccountSID,
			Password: s.cfg.AuthToken,
		})
		client = rest.Api
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	if s.cfg.MessagingServiceSID != "" {
		params.SetMessagingServiceSid(s.cfg.MessagingServiceSID)
	} else {
		params.SetFrom(s.cfg.From)
	}
	params.SetBody(fmt.Sprintf(s.cfg.Template, studentURL))

	resp, err := client.CreateMessage(params)
	if err != nil {
		s.logger.Error("share_send_failed", slog.String("error", err.Error()))
		return "", errorsx.Wrap(err, errorsx.ReasonShareSend)
	}
	if resp == nil || resp.Sid == nil {
		return "", errorsx.Newf(errorsx.ReasonShareSend, "missing message sid")
	}
	s.logger.Info("share_sent", slog.String("message_sid", *resp.Sid))
	return *resp.Sid, nil
}
