package interpreter

import (
	"encoding/json"
	"time"
)

// SessionConfig is the body of the session create call.
type SessionConfig struct {
	TargetLanguage    string  `json:"target_language"`
	TranslationPreset string  `json:"translation_preset,omitempty"`
	OverlapDuration   float64 `json:"overlap_duration"` // seconds
	EnableTranslation bool    `json:"enable_translation"`
}

// SessionHandle is the server's response to a session create. Config echoes
// the effective server-side configuration and is kept opaque.
type SessionHandle struct {
	SessionID string          `json:"session_id"`
	Config    json.RawMessage `json:"config,omitempty"`
	ExpiresAt time.Time       `json:"expires_at"`
	StreamURL string          `json:"stream_url,omitempty"`
}

// ProcessRequest is the body of a segment submission.
type ProcessRequest struct {
	AudioBase64 string  `json:"audio_base64"`
	AudioFormat string  `json:"audio_format"`
	StartTime   float64 `json:"start_time"` // seconds from recording start
	EndTime     float64 `json:"end_time"`
	IsFinal     bool    `json:"is_final"`
}

// queuedAck is the 202 response body for an asynchronously processed segment.
type queuedAck struct {
	SegmentID    string    `json:"segment_id"`
	SegmentIndex int       `json:"segment_index"`
	QueuedAt     time.Time `json:"queued_at"`
}

// SubmissionAck normalizes the two valid submit success shapes: 202-accepted
// (result arrives via the event stream) and 2xx-with-body (inline result).
// Downstream correlation is shape-agnostic; Result is non-nil only for the
// synchronous case.
type SubmissionAck struct {
	SegmentID    string
	SegmentIndex int
	Async        bool
	QueuedAt     time.Time
	Result       *SegmentResult
}

// StageTimings is the server-reported per-stage breakdown for one segment.
type StageTimings struct {
	TranscribeMs  float64 `json:"transcribe_ms"`
	DeduplicateMs float64 `json:"deduplicate_ms"`
	TranslateMs   float64 `json:"translate_ms"`
	TotalMs       float64 `json:"total_ms"`
}

// SegmentResult is a completed segment, either inline in a 200 submit
// response or as the payload of a "segment" event.
type SegmentResult struct {
	SegmentID        string        `json:"segment_id"`
	SegmentIndex     int           `json:"segment_index"`
	OriginalText     string        `json:"original_text,omitempty"`
	DeduplicatedText string        `json:"deduplicated_text,omitempty"`
	TranslatedText   string        `json:"translated_text,omitempty"`
	DetectedLanguage string        `json:"detected_language,omitempty"`
	Confidence       float64       `json:"confidence,omitempty"`
	IsDuplicate      bool          `json:"is_duplicate"`
	LatencyMs        float64       `json:"latency_ms,omitempty"`
	Timings          *StageTimings `json:"timings,omitempty"`
}

// Text returns the transcribed text, preferring the deduplicated form.
func (r *SegmentResult) Text() string {
	if r.DeduplicatedText != "" {
		return r.DeduplicatedText
	}
	return r.OriginalText
}

// SessionSummary is the cumulative accounting reported on session end.
type SessionSummary struct {
	TotalSegments  int     `json:"total_segments"`
	TotalDuration  float64 `json:"total_duration"` // seconds
	DuplicateCount int     `json:"duplicate_count,omitempty"`
	TotalLatencyMs float64 `json:"total_latency_ms,omitempty"`
}

// SessionStatus is the snapshot returned by the status endpoint.
type SessionStatus struct {
	SessionID        string          `json:"session_id"`
	State            string          `json:"state"`
	SegmentsReceived int             `json:"segments_received"`
	SegmentsPending  int             `json:"segments_pending"`
	LastSegmentID    string          `json:"last_segment_id,omitempty"`
	LastSegmentState string          `json:"last_segment_state,omitempty"`
	Summary          *SessionSummary `json:"summary,omitempty"`
	ExpiresAt        time.Time       `json:"expires_at,omitempty"`
}

// EndResponse is the session delete response; Summary is omitted by the
// server when no audio was processed.
type EndResponse struct {
	SessionID string          `json:"session_id"`
	Summary   *SessionSummary `json:"summary,omitempty"`
}

// StoredAudio references a segment's audio retained server-side.
type StoredAudio struct {
	SegmentID   string  `json:"segment_id"`
	AudioFormat string  `json:"audio_format"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	SizeBytes   int64   `json:"size_bytes"`
	URL         string  `json:"url,omitempty"`
}

// EventType identifies a server-push event.
type EventType string

const (
	EventReady     EventType = "ready"
	EventSegment   EventType = "segment"
	EventError     EventType = "error"
	EventHeartbeat EventType = "heartbeat"
	EventEnded     EventType = "ended"
	EventUnknown   EventType = "unknown"
)

// ReadyEvent confirms the event stream is attached to the session.
type ReadyEvent struct {
	SessionID string `json:"session_id"`
}

// StreamError is a server-reported error delivered over the event stream.
type StreamError struct {
	Message string `json:"message"`
}

// EndedEvent announces server-side session teardown.
type EndedEvent struct {
	Summary *SessionSummary `json:"summary,omitempty"`
}

// Event is the tagged union over the server-push event types. Exactly one of
// the payload pointers matching Type is set. Events the client does not
// recognize are surfaced as EventUnknown with RawType and Raw populated, not
// dropped, so new server event types fail visibly.
type Event struct {
	Type    EventType
	RawType string
	Raw     string

	Ready   *ReadyEvent
	Segment *SegmentResult
	Err     *StreamError
	Ended   *EndedEvent
}
