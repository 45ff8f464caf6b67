package metrics

import "time"

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

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Event names emitted by the session core.
const (
	EventSessionOpen      = "session_open"
	EventSessionClose     = "session_close"
	EventDecodeError      = "decode_error"
	EventChunkScheduled   = "chunk_scheduled"
	EventPlaybackUnderrun = "playback_underrun"
	EventInterruption     = "interruption"
	EventTurnFinalized    = "turn_finalized"
	EventStaleChunk       = "stale_chunk_dropped"
)
