package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/harunnryd/livesub/pkg/configutil"
	"github.com/harunnryd/livesub/pkg/livesub"
	"github.com/harunnryd/livesub/pkg/providers/deepgram"
	"github.com/harunnryd/livesub/pkg/providers/mock"
	"github.com/harunnryd/livesub/pkg/providers/stdin"
	"github.com/harunnryd/livesub/pkg/recognition"
	"github.com/harunnryd/livesub/pkg/translator"
)

type deepgramSettings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Encoding       string `mapstructure:"encoding"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Interim        *bool  `mapstructure:"interim"`
	UtteranceEndMS *int   `mapstructure:"utterance_end_ms"`
	// Audio is a raw PCM file path, or "-" for standard input.
	Audio string `mapstructure:"audio"`
}

type mockEngineSettings struct {
	Lines     []string      `mapstructure:"lines"`
	Interval  time.Duration `mapstructure:"interval"`
	EndOnStop *bool         `mapstructure:"end_on_stop"`
}

func registerProviders(reg *livesub.ProviderRegistry, in io.Reader) {
	reg.RegisterEngine("stdin", func(cfg livesub.Config) (recognition.Engine, error) {
		if err := validateSettings("recognition.settings", cfg.Recognition.Settings, configutil.Schema{}); err != nil {
			return nil, err
		}
		return stdin.New(in), nil
	})

	reg.RegisterEngine("deepgram", func(cfg livesub.Config) (recognition.Engine, error) {
		if err := validateSettings("recognition.settings", cfg.Recognition.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "encoding", "sample_rate", "interim", "utterance_end_ms", "audio"},
		}); err != nil {
			return nil, err
		}
		var settings deepgramSettings
		if err := configutil.DecodeSettings(cfg.Recognition.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "recognition.settings.api_key"); err != nil {
			return nil, err
		}
		if settings.Encoding != "" && !validDeepgramEncoding(settings.Encoding) {
			return nil, fmt.Errorf("recognition.settings.encoding must be one of [linear16, mulaw], got %s", settings.Encoding)
		}
		utteranceEnd := configutil.IntValue(settings.UtteranceEndMS, 1000)
		if utteranceEnd < 0 || utteranceEnd > 5000 {
			return nil, fmt.Errorf("recognition.settings.utterance_end_ms must be between 0 and 5000, got %d", utteranceEnd)
		}
		audio := in
		if settings.Audio != "" && settings.Audio != "-" {
			f, err := os.Open(settings.Audio)
			if err != nil {
				return nil, fmt.Errorf("recognition.settings.audio: %w", err)
			}
			audio = f
		}
		return deepgram.New(deepgram.Config{
			APIKey:         settings.APIKey,
			Model:          settings.Model,
			Encoding:       settings.Encoding,
			SampleRate:     settings.SampleRate,
			Interim:        configutil.BoolValue(settings.Interim, true),
			UtteranceEndMS: utteranceEnd,
			Audio:          audio,
		}), nil
	})

	reg.RegisterEngine("mock", func(cfg livesub.Config) (recognition.Engine, error) {
		if err := validateSettings("recognition.settings", cfg.Recognition.Settings, configutil.Schema{
			Optional: []string{"lines", "interval", "end_on_stop"},
		}); err != nil {
			return nil, err
		}
		var settings mockEngineSettings
		if err := configutil.DecodeSettings(cfg.Recognition.Settings, &settings); err != nil {
			return nil, err
		}
		script := make([]recognition.Event, 0, len(settings.Lines))
		for _, line := range settings.Lines {
			script = append(script, recognition.Event{
				Type:    recognition.EventResult,
				Results: []recognition.Hypothesis{{Transcript: line, IsFinal: true}},
			})
		}
		return mock.NewEngine(mock.EngineConfig{
			Script:    script,
			Interval:  settings.Interval,
			EndOnStop: configutil.BoolValue(settings.EndOnStop, false),
		}), nil
	})

	reg.RegisterTranslation("mymemory", func(cfg livesub.Config) (translator.Provider, error) {
		if err := validateSettings("translation.settings", cfg.Translation.Settings, configutil.Schema{
			Optional: []string{"endpoint", "email", "timeout"},
		}); err != nil {
			return nil, err
		}
		var settings translator.MyMemoryConfig
		if err := configutil.DecodeSettings(cfg.Translation.Settings, &settings); err != nil {
			return nil, err
		}
		return translator.NewMyMemory(settings, nil), nil
	})

	reg.RegisterTranslation("libretranslate", func(cfg livesub.Config) (translator.Provider, error) {
		if err := validateSettings("translation.settings", cfg.Translation.Settings, configutil.Schema{
			Optional: []string{"endpoint", "api_key", "timeout"},
		}); err != nil {
			return nil, err
		}
		var settings translator.LibreTranslateConfig
		if err := configutil.DecodeSettings(cfg.Translation.Settings, &settings); err != nil {
			return nil, err
		}
		return translator.NewLibreTranslate(settings, nil), nil
	})

	reg.RegisterTranslation("openai", func(cfg livesub.Config) (translator.Provider, error) {
		if err := validateSettings("translation.settings", cfg.Translation.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "base_url", "timeout"},
		}); err != nil {
			return nil, err
		}
		var settings translator.OpenAIConfig
		if err := configutil.DecodeSettings(cfg.Translation.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "translation.settings.api_key"); err != nil {
			return nil, err
		}
		return translator.NewOpenAI(settings, nil), nil
	})
}

func validateSettings(path string, input map[string]any, schema configutil.Schema) error {
	return configutil.ValidateAt(path, input, schema)
}

func validDeepgramEncoding(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "linear16", "mulaw":
		return true
	default:
		return false
	}
}
