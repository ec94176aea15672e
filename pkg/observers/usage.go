package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/livesub/pkg/metrics"
)

// UsageSummary counts what one presenter session consumed. Translation
// requests are the billable part for hosted providers.
type UsageSummary struct {
	Session            string `json:"session_id"`
	CaptionsAdded      int    `json:"captions_added"`
	CaptionsBroadcast  int    `json:"captions_broadcast"`
	CaptionsSuppressed int    `json:"captions_suppressed"`
	CaptionsDeferred   int    `json:"captions_deferred"`
	RecognitionRetries int    `json:"recognition_restarts"`
	TranslateRequests  int    `json:"translate_requests"`
	TranslateCacheHits int    `json:"translate_cache_hits"`
	TranslateFailures  int    `json:"translate_failures"`
	RecordedAtUTC      string `json:"recorded_at_utc"`
}

// UsageObserver tallies session-tagged events and writes
// <dir>/<session_id>.usage.json for each session on Close.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
	now   func() time.Time
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary), now: time.Now}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	if strings.TrimSpace(o.dir) == "" || ev.Tags == nil {
		return
	}
	id := ev.Tags[SessionTag]
	if id == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	stat := o.stats[id]
	if stat == nil {
		stat = &UsageSummary{Session: id}
		o.stats[id] = stat
	}
	switch ev.Name {
	case metrics.EventCaptionAdded:
		stat.CaptionsAdded++
	case metrics.EventCaptionBroadcast:
		stat.CaptionsBroadcast++
	case metrics.EventCaptionSuppressed:
		stat.CaptionsSuppressed++
	case metrics.EventCaptionDeferred:
		stat.CaptionsDeferred++
	case metrics.EventRecognitionRetry:
		stat.RecognitionRetries++
	case metrics.EventTranslateRequest:
		stat.TranslateRequests++
	case metrics.EventTranslateHit:
		stat.TranslateCacheHits++
	case metrics.EventTranslateFailure:
		stat.TranslateFailures++
	}
}

// Summary returns a copy of the running tally for session.
func (o *UsageObserver) Summary(session string) (UsageSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stat := o.stats[session]
	if stat == nil {
		return UsageSummary{}, false
	}
	return *stat, true
}

func (o *UsageObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.stats) == 0 {
		return nil
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	var errOut error
	for id, stat := range o.stats {
		stat.RecordedAtUTC = o.now().UTC().Format(time.RFC3339)
		b, err := json.MarshalIndent(stat, "", "  ")
		if err != nil {
			errOut = errors.Join(errOut, err)
			continue
		}
		path := filepath.Join(o.dir, sanitizeID(id)+UsageSuffix)
		if err := os.WriteFile(path, b, 0o644); err != nil {
			errOut = errors.Join(errOut, err)
		}
	}
	return errOut
}

var _ metrics.Observer = (*UsageObserver)(nil)
