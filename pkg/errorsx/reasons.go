package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonRelayUpgrade ReasonCode = "relay_upgrade"
	ReasonRelaySend    ReasonCode = "relay_send"

	ReasonBroadcastDial ReasonCode = "broadcast_dial"
	ReasonBroadcastSend ReasonCode = "broadcast_send"

	ReasonReceiverDial   ReasonCode = "receiver_dial"
	ReasonReceiverDecode ReasonCode = "receiver_decode"

	ReasonRecognitionUnavailable ReasonCode = "recognition_unavailable"
	ReasonRecognitionRestart     ReasonCode = "recognition_restart"

	ReasonTranslateRequest   ReasonCode = "translate_request"
	ReasonTranslateRateLimit ReasonCode = "translate_rate_limit"
	ReasonTranslateAPI       ReasonCode = "translate_api"

	ReasonWordsPersist ReasonCode = "words_persist"
	ReasonShareSend    ReasonCode = "share_send"
)
