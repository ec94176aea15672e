package livesub

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/harunnryd/livesub/pkg/translator"
	"github.com/harunnryd/livesub/pkg/transports/receiver"
	"github.com/harunnryd/livesub/pkg/transports/relay"
	"github.com/harunnryd/livesub/pkg/transports/twilio"
	"github.com/spf13/viper"
)

type Config struct {
	Server        relay.Config        `mapstructure:"server"`
	Presenter     PresenterConfig     `mapstructure:"presenter"`
	Receiver      receiver.Config     `mapstructure:"receiver"`
	Recognition   RecognitionConfig   `mapstructure:"recognition"`
	Translation   TranslationConfig   `mapstructure:"translation"`
	Words         WordsConfig         `mapstructure:"words"`
	Share         twilio.Config       `mapstructure:"share"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type PresenterConfig struct {
	BroadcastURL   string        `mapstructure:"broadcast_url"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MaxLines       int           `mapstructure:"max_lines"`
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	ExportDir      string        `mapstructure:"export_dir"`
	ExportOnStop   bool          `mapstructure:"export_on_stop"`
}

type RecognitionConfig struct {
	VendorConfig      `mapstructure:",squash"`
	Language          string        `mapstructure:"language"`
	EndRestartDelay   time.Duration `mapstructure:"end_restart_delay"`
	ErrorRestartDelay time.Duration `mapstructure:"error_restart_delay"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
}

type TranslationConfig struct {
	VendorConfig      `mapstructure:",squash"`
	translator.Config `mapstructure:",squash"`
	// DetectLanguages narrows the lingua detector used when source is "auto".
	DetectLanguages []string `mapstructure:"detect_languages"`
}

type WordsConfig struct {
	// Dir holds the badger database. Empty keeps saved words in memory.
	Dir string `mapstructure:"dir"`
}

type ObservabilityConfig struct {
	MetricsPath   string `mapstructure:"metrics_path"`
	ArtifactsDir  string `mapstructure:"artifacts_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// LoadConfig reads path (any format viper understands) on top of the built-in
// defaults. An empty path yields the defaults plus LIVESUB_* environment
// overrides.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("livesub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.server_addr", ":3000")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.static_dir", "dist")
	v.SetDefault("server.student_path", "/student.html")
	v.SetDefault("server.send_buffer", 256)
	v.SetDefault("server.allow_any_origin", true)
	v.SetDefault("presenter.broadcast_url", "ws://localhost:3000/ws")
	v.SetDefault("presenter.retry_delay", "100ms")
	v.SetDefault("presenter.max_lines", 500)
	v.SetDefault("presenter.debounce_window", "100ms")
	v.SetDefault("presenter.export_dir", ".")
	v.SetDefault("presenter.export_on_stop", false)
	v.SetDefault("receiver.url", "ws://localhost:3000/ws")
	v.SetDefault("receiver.base_delay", "1s")
	v.SetDefault("receiver.max_delay", "16s")
	v.SetDefault("receiver.reset_backoff_on_connect", true)
	v.SetDefault("recognition.provider", "stdin")
	v.SetDefault("recognition.language", "en-US")
	v.SetDefault("recognition.end_restart_delay", "100ms")
	v.SetDefault("recognition.error_restart_delay", "1s")
	v.SetDefault("recognition.settle_delay", "100ms")
	v.SetDefault("translation.provider", "mymemory")
	v.SetDefault("translation.source", "en")
	v.SetDefault("translation.target", "th")
	v.SetDefault("translation.min_interval", "1s")
	v.SetDefault("translation.cache_size", translator.DefaultCacheSize)
	v.SetDefault("translation.max_retries", 2)
	v.SetDefault("translation.retry_backoff", "500ms")
	v.SetDefault("translation.breaker_threshold", 5)
	v.SetDefault("translation.breaker_cooldown", "30s")
	v.SetDefault("words.dir", ".livesub/words")
	v.SetDefault("share.template", twilio.DefaultTemplate)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("observability.metrics_path", "")
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("privacy.redact_pii", true)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Recognition.Provider) == "" {
		return fmt.Errorf("recognition.provider is required")
	}
	if strings.TrimSpace(c.Translation.Provider) == "" {
		return fmt.Errorf("translation.provider is required")
	}
	if strings.TrimSpace(c.Translation.Target) == "" {
		return fmt.Errorf("translation.target is required")
	}
	if c.Translation.CacheSize < 0 {
		return fmt.Errorf("translation.cache_size must be >= 0, got %d", c.Translation.CacheSize)
	}
	if c.Receiver.BaseDelay < 0 || c.Receiver.MaxDelay < 0 {
		return fmt.Errorf("receiver delays must not be negative")
	}
	if c.Receiver.MaxDelay > 0 && c.Receiver.MaxDelay < c.Receiver.BaseDelay {
		return fmt.Errorf("receiver.max_delay (%s) is below receiver.base_delay (%s)", c.Receiver.MaxDelay, c.Receiver.BaseDelay)
	}
	if c.Server.SendBuffer < 0 {
		return fmt.Errorf("server.send_buffer must be >= 0, got %d", c.Server.SendBuffer)
	}
	if c.Observability.RetentionDays < 0 {
		return fmt.Errorf("observability.retention_days must be >= 0, got %d", c.Observability.RetentionDays)
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Recognition.Settings = expandSettings(cfg.Recognition.Settings)
	cfg.Translation.Settings = expandSettings(cfg.Translation.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
