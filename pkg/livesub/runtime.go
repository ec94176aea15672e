package livesub

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/livesub/pkg/logging"
	"github.com/harunnryd/livesub/pkg/metrics"
	"github.com/harunnryd/livesub/pkg/observers"
	"github.com/harunnryd/livesub/pkg/redact"
	"github.com/harunnryd/livesub/pkg/translator"
	"github.com/harunnryd/livesub/pkg/vocab"
)

// Init configures the default logger and PII redaction from cfg.
func Init(cfg Config) *slog.Logger {
	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)
	logger.Info("livesub_init",
		slog.String("log_level", cfg.LogLevel),
		slog.String("recognition", cfg.Recognition.Provider),
		slog.String("translation", cfg.Translation.Provider),
		slog.Bool("redact_pii", cfg.Privacy.RedactPII))
	return logger
}

// Observability is the process-wide metrics sink. Close flushes and releases
// any metrics file.
type Observability struct {
	Observer metrics.Observer
	async    *metrics.AsyncObserver
	jsonl    *metrics.JSONLObserver
	timeline *observers.TimelineObserver
	usage    *observers.UsageObserver
}

// NewObservability always logs metrics at debug level. observability.metrics_path
// adds a JSON lines sink and observability.artifacts_dir adds per-session
// timelines and usage summaries; old artifacts are purged first when a retention window is set.
func NewObservability(cfg Config, logger *slog.Logger) (*Observability, error) {
	if logger == nil {
		logger = slog.Default()
	}
	oc := cfg.Observability
	if oc.ArtifactsDir != "" && oc.RetentionDays > 0 {
		removed, err := observers.PurgeArtifacts(oc.ArtifactsDir, time.Duration(oc.RetentionDays)*24*time.Hour)
		if err != nil {
			logger.Warn("artifacts_purge_failed", slog.String("error", err.Error()))
		} else if removed > 0 {
			logger.Info("artifacts_purged", slog.Int("removed", removed))
		}
	}

	list := []metrics.Observer{observers.NewLoggerObserver(logger)}
	o := &Observability{}
	if oc.MetricsPath != "" {
		jsonl, err := metrics.OpenJSONLFile(oc.MetricsPath)
		if err != nil {
			return nil, fmt.Errorf("open metrics file: %w", err)
		}
		o.jsonl = jsonl
		list = append(list, jsonl)
	}
	if oc.ArtifactsDir != "" {
		o.timeline = observers.NewTimelineObserver(oc.ArtifactsDir)
		o.usage = observers.NewUsageObserver(oc.ArtifactsDir)
		list = append(list, o.timeline, o.usage)
	}
	o.async = metrics.NewAsyncObserver(observers.NewMultiObserver(list...), 2048)
	o.Observer = o.async
	return o, nil
}

func (o *Observability) Close() error {
	if o == nil {
		return nil
	}
	if o.async != nil {
		o.async.Close()
	}
	var err error
	if o.timeline != nil {
		err = o.timeline.Close()
	}
	if o.usage != nil {
		err = errors.Join(err, o.usage.Close())
	}
	if o.jsonl != nil {
		err = errors.Join(err, o.jsonl.Close())
	}
	return err
}

// BuildTranslator resolves translation.provider through reg and wraps it with
// the cache, rate limit and retry policy from cfg.
func BuildTranslator(cfg Config, reg *ProviderRegistry, obs metrics.Observer, logger *slog.Logger) (*translator.Translator, error) {
	provider, err := reg.BuildTranslation(cfg.Translation.Provider, cfg)
	if err != nil {
		return nil, err
	}
	opts := []translator.Option{translator.WithLogger(logger)}
	if obs != nil {
		opts = append(opts, translator.WithObserver(obs))
	}
	if strings.EqualFold(cfg.Translation.Source, translator.AutoLanguage) {
		opts = append(opts, translator.WithDetector(translator.NewLinguaDetector(cfg.Translation.DetectLanguages...)))
	}
	return translator.New(provider, cfg.Translation.Config, opts...), nil
}

// OpenWords opens the saved-word store under words.dir. The caller closes
// the returned backend.
func OpenWords(cfg Config, logger *slog.Logger) (*vocab.Store, vocab.Backend, error) {
	backend, err := vocab.OpenBadger(cfg.Words.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open words: %w", err)
	}
	return vocab.Open(backend, vocab.WithLogger(logger)), backend, nil
}
