package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/rickyjim626/interpreter-client/internal/interpreter"
)

// SegmentMetrics holds the milestone timestamps of one segment's path through
// the pipeline. Zero timestamps mean the milestone was never reached.
type SegmentMetrics struct {
	LocalIndex int

	AssembledAt     time.Time
	EncodingStart   time.Time
	EncodingEnd     time.Time
	SubmitSent      time.Time
	SubmitConfirmed time.Time
	EventReceived   time.Time

	ServerTimings *interpreter.StageTimings
}

// EncodingDuration returns the local encode latency, zero if incomplete.
func (m *SegmentMetrics) EncodingDuration() time.Duration {
	if m.EncodingStart.IsZero() || m.EncodingEnd.IsZero() {
		return 0
	}
	return m.EncodingEnd.Sub(m.EncodingStart)
}

// RoundTripDuration returns submit-to-ack latency, zero if incomplete.
func (m *SegmentMetrics) RoundTripDuration() time.Duration {
	if m.SubmitSent.IsZero() || m.SubmitConfirmed.IsZero() {
		return 0
	}
	return m.SubmitConfirmed.Sub(m.SubmitSent)
}

// EndToEndDuration returns submit-to-result latency, zero if incomplete.
// Encode time and pre-submit backlog are excluded; PipelineDuration covers
// the full assembly-to-result span.
func (m *SegmentMetrics) EndToEndDuration() time.Duration {
	if m.SubmitSent.IsZero() || m.EventReceived.IsZero() {
		return 0
	}
	return m.EventReceived.Sub(m.SubmitSent)
}

// PipelineDuration returns assembly-to-result latency, zero if incomplete.
func (m *SegmentMetrics) PipelineDuration() time.Duration {
	if m.AssembledAt.IsZero() || m.EventReceived.IsZero() {
		return 0
	}
	return m.EventReceived.Sub(m.AssembledAt)
}

// Aggregates summarizes per-segment timings across a session.
type Aggregates struct {
	Segments       int     `json:"segments"`
	AvgEncodingMs  float64 `json:"avg_encoding_ms"`
	AvgRoundTripMs float64 `json:"avg_round_trip_ms"`
	AvgEndToEndMs  float64 `json:"avg_end_to_end_ms"`
}

// Report is a point-in-time snapshot of all segment metrics, ordered by
// local segment index.
type Report struct {
	Segments   []SegmentMetrics `json:"segments"`
	Aggregates Aggregates       `json:"aggregates"`
}

// Recorder tracks per-segment timing milestones. Segments are keyed by id;
// the key migrates from the client-assigned id to the server-assigned one
// when the submission is confirmed. Marks against unknown ids are ignored,
// since results can race remaps.
type Recorder struct {
	mu       sync.Mutex
	segments map[string]*SegmentMetrics
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{segments: make(map[string]*SegmentMetrics)}
}

// Begin registers a freshly assembled segment under its client id.
func (r *Recorder) Begin(id string, localIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments[id] = &SegmentMetrics{
		LocalIndex:  localIndex,
		AssembledAt: time.Now(),
	}
}

// MarkEncodingStart records the start of the encode stage.
func (r *Recorder) MarkEncodingStart(id string) {
	r.mark(id, func(m *SegmentMetrics) { m.EncodingStart = time.Now() })
}

// MarkEncodingEnd records the end of the encode stage.
func (r *Recorder) MarkEncodingEnd(id string) {
	r.mark(id, func(m *SegmentMetrics) { m.EncodingEnd = time.Now() })
}

// MarkSubmitSent records the start of the submit request.
func (r *Recorder) MarkSubmitSent(id string) {
	r.mark(id, func(m *SegmentMetrics) { m.SubmitSent = time.Now() })
}

// MarkSubmitConfirmed records the submit acknowledgment.
func (r *Recorder) MarkSubmitConfirmed(id string) {
	r.mark(id, func(m *SegmentMetrics) { m.SubmitConfirmed = time.Now() })
}

// MarkEventReceived records arrival of the segment's result event.
func (r *Recorder) MarkEventReceived(id string) {
	r.mark(id, func(m *SegmentMetrics) { m.EventReceived = time.Now() })
}

// FoldServerTimings attaches server-reported stage timings to the segment.
func (r *Recorder) FoldServerTimings(id string, timings *interpreter.StageTimings) {
	r.mark(id, func(m *SegmentMetrics) { m.ServerTimings = timings })
}

// Remap rekeys a segment from its client id to the server-assigned id.
// Remapping an unknown old id is a no-op, which makes replayed
// acknowledgments harmless.
func (r *Recorder) Remap(oldID, newID string) {
	if oldID == newID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.segments[oldID]
	if !ok {
		return
	}
	delete(r.segments, oldID)
	r.segments[newID] = m
}

func (r *Recorder) mark(id string, fn func(*SegmentMetrics)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.segments[id]; ok {
		fn(m)
	}
}

// Snapshot returns the metrics for one segment id, false if unknown.
func (r *Recorder) Snapshot(id string) (SegmentMetrics, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.segments[id]
	if !ok {
		return SegmentMetrics{}, false
	}
	return *m, true
}

// Report returns all segment metrics sorted by local index, with aggregates
// computed over segments that completed the relevant milestones.
func (r *Recorder) Report() Report {
	r.mu.Lock()
	segments := make([]SegmentMetrics, 0, len(r.segments))
	for _, m := range r.segments {
		segments = append(segments, *m)
	}
	r.mu.Unlock()

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].LocalIndex < segments[j].LocalIndex
	})

	report := Report{Segments: segments}
	report.Aggregates.Segments = len(segments)

	var encSum, rttSum, e2eSum time.Duration
	var encN, rttN, e2eN int
	for i := range segments {
		if d := segments[i].EncodingDuration(); d > 0 {
			encSum += d
			encN++
		}
		if d := segments[i].RoundTripDuration(); d > 0 {
			rttSum += d
			rttN++
		}
		if d := segments[i].EndToEndDuration(); d > 0 {
			e2eSum += d
			e2eN++
		}
	}
	if encN > 0 {
		report.Aggregates.AvgEncodingMs = float64(encSum.Milliseconds()) / float64(encN)
	}
	if rttN > 0 {
		report.Aggregates.AvgRoundTripMs = float64(rttSum.Milliseconds()) / float64(rttN)
	}
	if e2eN > 0 {
		report.Aggregates.AvgEndToEndMs = float64(e2eSum.Milliseconds()) / float64(e2eN)
	}

	return report
}
