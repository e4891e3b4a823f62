package pipeline

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rickyjim626/interpreter-client/internal/audio"
	"github.com/rickyjim626/interpreter-client/internal/interpreter"
	"github.com/rickyjim626/interpreter-client/internal/metrics"
)

// Correlator matches out-of-order segment results back to transcript
// positions. Each assembled segment gets a client-generated id; when the
// server acknowledges the submission with its own id the key migrates to
// the server id, so later results under the retired client id are
// discarded.
type Correlator struct {
	logger   *slog.Logger
	recorder *metrics.Recorder

	mu         sync.Mutex
	pending    map[string]int // segment id -> transcript index
	transcript []Entry
	completed  int
	discarded  int
}

// NewCorrelator creates a correlator feeding the given recorder.
func NewCorrelator(logger *slog.Logger, recorder *metrics.Recorder) *Correlator {
	return &Correlator{
		logger:   logger,
		recorder: recorder,
		pending:  make(map[string]int),
	}
}

// AddSegment registers a freshly assembled segment and returns its
// client-assigned id. The transcript slot is created immediately in
// transcribing state.
func (c *Correlator) AddSegment(segment *audio.Segment) string {
	clientID := uuid.NewString()

	c.mu.Lock()
	index := len(c.transcript)
	c.transcript = append(c.transcript, Entry{
		Index:     index,
		SegmentID: clientID,
		StartTime: segment.EffectiveStart().Seconds(),
		EndTime:   segment.EndTime.Seconds(),
		IsFinal:   segment.IsFinal,
		Status:    StatusTranscribing,
	})
	c.pending[clientID] = index
	c.mu.Unlock()

	c.recorder.Begin(clientID, index)
	return clientID
}

// Confirm rekeys a pending segment from its client id to the server-assigned
// id. Confirming an unknown or already-rekeyed id is a no-op, so replayed
// acknowledgments are harmless.
func (c *Correlator) Confirm(clientID, serverID string) {
	if serverID == "" || serverID == clientID {
		return
	}

	c.mu.Lock()
	index, ok := c.pending[clientID]
	if ok {
		delete(c.pending, clientID)
		c.pending[serverID] = index
		c.transcript[index].SegmentID = serverID
	}
	c.mu.Unlock()

	if ok {
		c.recorder.Remap(clientID, serverID)
	}
}

// Apply resolves a segment result to its transcript slot. Results for
// unknown ids are logged and discarded; duplicates are recorded as completed
// entries with no translation.
func (c *Correlator) Apply(result *interpreter.SegmentResult) {
	c.mu.Lock()
	index, ok := c.pending[result.SegmentID]
	if !ok {
		c.discarded++
		c.mu.Unlock()
		c.logger.Warn("Discarding result for unknown segment",
			slog.String("segment_id", result.SegmentID),
			slog.Int("segment_index", result.SegmentIndex),
		)
		return
	}
	delete(c.pending, result.SegmentID)

	entry := &c.transcript[index]
	entry.Status = StatusCompleted
	entry.DetectedLanguage = result.DetectedLanguage
	entry.IsDuplicate = result.IsDuplicate
	if result.IsDuplicate {
		entry.OriginalText = "(duplicate)"
	} else {
		entry.OriginalText = result.Text()
		entry.TranslatedText = result.TranslatedText
	}
	c.completed++
	c.mu.Unlock()

	c.recorder.MarkEventReceived(result.SegmentID)
	c.recorder.FoldServerTimings(result.SegmentID, result.Timings)
}

// Fail marks a pending segment as failed, keeping its transcript slot.
func (c *Correlator) Fail(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)
	c.transcript[index].Status = StatusFailed
	c.transcript[index].Error = err.Error()
}

// Transcript returns a snapshot of the transcript in segment order.
func (c *Correlator) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// PendingCount returns the number of segments still awaiting results.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// CorrelatorStats represents correlation statistics.
type CorrelatorStats struct {
	TotalSegments int `json:"total_segments"`
	Completed     int `json:"completed"`
	Pending       int `json:"pending"`
	Discarded     int `json:"discarded"`
}

// GetStats returns current correlation statistics.
func (c *Correlator) GetStats() CorrelatorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CorrelatorStats{
		TotalSegments: len(c.transcript),
		Completed:     c.completed,
		Pending:       len(c.pending),
		Discarded:     c.discarded,
	}
}
