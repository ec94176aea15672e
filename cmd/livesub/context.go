package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/harunnryd/livesub/pkg/livesub"
	"github.com/harunnryd/livesub/pkg/vocab"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     livesub.Config
	configErr  error
	logger     *slog.Logger

	obs      *livesub.Observability
	backends []vocab.Backend
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (livesub.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := livesub.LoadConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.LogLevel = *c.logLevelFlag
		}
		c.config = cfg
		c.logger = livesub.Init(cfg)
	})
	return c.config, c.configErr
}

func (c *commandContext) observability() (*livesub.Observability, error) {
	if c.obs != nil {
		return c.obs, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	obs, err := livesub.NewObservability(cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.obs = obs
	return obs, nil
}

// registry resolves providers; the stdin engine reads recognized lines from in.
func (c *commandContext) registry(in io.Reader) *livesub.ProviderRegistry {
	reg := livesub.NewProviderRegistry()
	registerProviders(reg, in)
	return reg
}

// openWords opens the saved-word store. Callers defer close.
func (c *commandContext) openWords() (*vocab.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, backend, err := livesub.OpenWords(cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.backends = append(c.backends, backend)
	return store, nil
}

func (c *commandContext) close() error {
	var err error
	for _, b := range c.backends {
		err = errors.Join(err, b.Close())
	}
	c.backends = nil
	if c.obs != nil {
		err = errors.Join(err, c.obs.Close())
		c.obs = nil
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
