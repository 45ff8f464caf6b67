package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonMicPermission ReasonCode = "mic_permission"
	ReasonMicRead       ReasonCode = "mic_read"

	ReasonLiveConnect ReasonCode = "live_connect"
	ReasonLiveSend    ReasonCode = "live_send"
	ReasonLiveRecv    ReasonCode = "live_recv"

	ReasonDecode   ReasonCode = "audio_decode"
	ReasonPlayback ReasonCode = "playback"

	ReasonGenRequest   ReasonCode = "gen_request"
	ReasonGenParse     ReasonCode = "gen_parse"
	ReasonGenRateLimit ReasonCode = "gen_rate_limit"
)
