package audio

import (
	"sync"
	"time"
)

// Segment represents a contiguous span of mono PCM samples ready for encoding
// and submission. Samples includes the overlap carried from the previous
// segment; StartTime/EndTime describe the non-overlap span measured from
// recording start.
type Segment struct {
	Index      int           `json:"index"`
	Samples    []float32     `json:"-"`
	StartTime  time.Duration `json:"start_time"`
	EndTime    time.Duration `json:"end_time"`
	Overlap    time.Duration `json:"overlap_duration"`
	SampleRate int           `json:"sample_rate"`
	IsFinal    bool          `json:"is_final"`
}

// EffectiveStart returns the start of the audio actually contained in the
// segment, overlap included. Never negative: the first segment carries no
// overlap, and later overlaps never exceed the cursor position.
func (s *Segment) EffectiveStart() time.Duration {
	if s.Overlap > s.StartTime {
		return 0
	}
	return s.StartTime - s.Overlap
}

// Duration returns the non-overlap span of the segment.
func (s *Segment) Duration() time.Duration {
	return s.EndTime - s.StartTime
}

// OverlapSamples returns the number of leading samples duplicated from the
// previous segment.
func (s *Segment) OverlapSamples() int {
	return int(s.Overlap.Seconds() * float64(s.SampleRate))
}

// AssemblerConfig contains configuration for the segment assembler.
type AssemblerConfig struct {
	SampleRate      int
	SegmentDuration time.Duration
	OverlapDuration time.Duration
}

// Assembler accumulates PCM samples into a rolling buffer and emits
// fixed-length segments padded with overlap from the previous emission.
// The timestamp cursor advances by processed sample count, never wall clock,
// so encoding or network delay cannot drift into segment boundaries.
type Assembler struct {
	config AssemblerConfig

	segmentSamples int
	overlapSamples int

	buffer      []float32
	overlapSeed []float32
	cursor      time.Duration // start of the next segment's non-overlap span
	nextIndex   int

	// Statistics
	segmentsEmitted uint64
	samplesPushed   uint64

	mu sync.Mutex
}

// AssemblerStats represents assembler statistics for monitoring.
type AssemblerStats struct {
	SegmentsEmitted uint64        `json:"segments_emitted"`
	SamplesPushed   uint64        `json:"samples_pushed"`
	BufferedSamples int           `json:"buffered_samples"`
	Processed       time.Duration `json:"processed_duration"`
}

// NewAssembler creates a new segment assembler.
func NewAssembler(config AssemblerConfig) *Assembler {
	segmentSamples := int(config.SegmentDuration.Seconds() * float64(config.SampleRate))
	overlapSamples := int(config.OverlapDuration.Seconds() * float64(config.SampleRate))

	return &Assembler{
		config:         config,
		segmentSamples: segmentSamples,
		overlapSamples: overlapSamples,
		buffer:         make([]float32, 0, segmentSamples+overlapSamples),
	}
}

// PushFrame appends a frame of samples to the rolling buffer and returns any
// segments that became complete, in order. A single large frame can complete
// more than one segment.
func (a *Assembler) PushFrame(samples []float32) []Segment {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = append(a.buffer, samples...)
	a.samplesPushed += uint64(len(samples))

	var emitted []Segment
	for len(a.buffer) >= a.segmentSamples {
		emitted = append(emitted, a.emitLocked(a.buffer[:a.segmentSamples], false))
		a.buffer = a.buffer[a.segmentSamples:]
	}
	return emitted
}

// Flush emits whatever samples remain as a final, possibly-short segment and
// clears the overlap seed. Returns nil if the buffer is empty.
func (a *Assembler) Flush() *Segment {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buffer) == 0 {
		a.overlapSeed = nil
		return nil
	}

	seg := a.emitLocked(a.buffer, true)
	a.buffer = a.buffer[:0]
	a.overlapSeed = nil
	return &seg
}

// emitLocked builds a segment from overlapSeed + newSamples, advances the
// cursor by the processed (non-overlap) duration and retains the tail of
// newSamples as the seed for the next emission.
func (a *Assembler) emitLocked(newSamples []float32, final bool) Segment {
	combined := make([]float32, 0, len(a.overlapSeed)+len(newSamples))
	combined = append(combined, a.overlapSeed...)
	combined = append(combined, newSamples...)

	processed := a.sampleDuration(len(newSamples))
	seg := Segment{
		Index:      a.nextIndex,
		Samples:    combined,
		StartTime:  a.cursor,
		EndTime:    a.cursor + processed,
		Overlap:    a.sampleDuration(len(a.overlapSeed)),
		SampleRate: a.config.SampleRate,
		IsFinal:    final,
	}

	if final {
		a.overlapSeed = nil
	} else if a.overlapSamples > 0 {
		tail := newSamples
		if len(tail) > a.overlapSamples {
			tail = tail[len(tail)-a.overlapSamples:]
		}
		a.overlapSeed = append([]float32(nil), tail...)
	}

	a.cursor += processed
	a.nextIndex++
	a.segmentsEmitted++

	return seg
}

// sampleDuration converts a sample count to its duration at the configured rate.
func (a *Assembler) sampleDuration(n int) time.Duration {
	return time.Duration(float64(n) / float64(a.config.SampleRate) * float64(time.Second))
}

// ProcessedDuration returns the total duration emitted so far, overlap excluded.
func (a *Assembler) ProcessedDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// GetStats returns current assembler statistics.
func (a *Assembler) GetStats() AssemblerStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AssemblerStats{
		SegmentsEmitted: a.segmentsEmitted,
		SamplesPushed:   a.samplesPushed,
		BufferedSamples: len(a.buffer),
		Processed:       a.cursor,
	}
}
