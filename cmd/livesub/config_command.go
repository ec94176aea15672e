package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const sampleConfig = `# livesub configuration. ${VAR} references are expanded from the environment.
log_level: info
log_format: text

server:
  server_addr: ":3000"
  public_url: ""
  static_dir: dist

presenter:
  broadcast_url: ws://localhost:3000/ws
  export_on_stop: false
  export_dir: transcripts

receiver:
  url: ws://localhost:3000/ws
  base_delay: 1s
  max_delay: 16s
  reset_backoff_on_connect: true

recognition:
  provider: stdin
  language: en-US
  # provider: deepgram
  # settings:
  #   api_key: ${DEEPGRAM_API_KEY}
  #   model: nova-2
  #   audio: "-"

translation:
  provider: mymemory
  source: en
  target: th
  min_interval: 1s
  cache_size: 200

words:
  dir: .livesub/words

share:
  account_sid: ${TWILIO_ACCOUNT_SID}
  auth_token: ${TWILIO_AUTH_TOKEN}
  from: ${TWILIO_FROM}

privacy:
  redact_pii: true
`

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = "livesub.yaml"
			}
			if dir := filepath.Dir(target); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create config directory %q: %w", dir, err)
				}
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := os.WriteFile(target, []byte(sampleConfig), 0o644); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and build its providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg := ctx.registry(nil)
			if _, err := reg.BuildTranslation(cfg.Translation.Provider, cfg); err != nil {
				return err
			}
			if _, err := reg.BuildEngine(cfg.Recognition.Provider, cfg); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration valid")
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, [][]string{
				{"recognition", cfg.Recognition.Provider + " (" + cfg.Recognition.Language + ")"},
				{"translation", cfg.Translation.Provider + " " + cfg.Translation.Source + " -> " + cfg.Translation.Target},
				{"relay", cfg.Server.ServerAddr},
				{"words", cfg.Words.Dir},
			}, nil))
			return nil
		},
	}
}
