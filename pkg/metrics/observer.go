package metrics

import "time"

// Event names emitted by the caption pipeline.
const (
	EventCaptionAdded      = "caption_added"
	EventCaptionBroadcast  = "caption_broadcast"
	EventCaptionSuppressed = "caption_suppressed"
	EventCaptionDeferred   = "caption_deferred"
	EventRelayConnect      = "relay_connect"
	EventRelayDisconnect   = "relay_disconnect"
	EventRelayMessage      = "relay_message"
	EventRelayDropped      = "relay_dropped"
	EventReceiverReconnect = "receiver_reconnect"
	EventTranslateHit      = "translate_cache_hit"
	EventTranslateRequest  = "translate_request"
	EventTranslateFailure  = "translate_failure"
	EventRecognitionRetry  = "recognition_restart"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Record emits a named event on obs, tolerating a nil observer.
func Record(obs Observer, name string, value float64, tags map[string]string) {
	if obs == nil {
		return
	}
	obs.RecordEvent(MetricsEvent{Name: name, Time: time.Now(), Value: value, Tags: tags})
}
