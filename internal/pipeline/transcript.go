package pipeline

import "time"

// EntryStatus is the lifecycle status of one transcript entry.
type EntryStatus string

const (
	StatusTranscribing EntryStatus = "transcribing"
	StatusCompleted    EntryStatus = "completed"
	StatusFailed       EntryStatus = "failed"
)

// Entry is one segment's slot in the session transcript. Entries are created
// in assembly order and updated in place as results arrive, so the transcript
// stays ordered regardless of result arrival order.
type Entry struct {
	Index            int         `json:"index"`
	SegmentID        string      `json:"segment_id"`
	StartTime        float64     `json:"start_time"` // seconds
	EndTime          float64     `json:"end_time"`   // seconds
	IsFinal          bool        `json:"is_final"`
	Status           EntryStatus `json:"status"`
	OriginalText     string      `json:"original_text,omitempty"`
	TranslatedText   string      `json:"translated_text,omitempty"`
	DetectedLanguage string      `json:"detected_language,omitempty"`
	IsDuplicate      bool        `json:"is_duplicate,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// Session is a finished session's transcript plus its accounting, the unit
// persisted to history.
type Session struct {
	ID             string
	SourceLanguage string
	TargetLanguage string
	StartedAt      time.Time
	TotalDuration  time.Duration
	Segments       []Entry
}

// HistorySink persists finished sessions.
type HistorySink interface {
	SaveSession(session *Session) error
}
