package audio

import (
	"testing"
	"time"
)

// ramp returns n samples whose value encodes their absolute position, which
// makes overlap and continuity checks exact.
func ramp(start, n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(start + i)
	}
	return samples
}

func newTestAssembler(t *testing.T) *Assembler {
	t.Helper()
	return NewAssembler(AssemblerConfig{
		SampleRate:      1000,
		SegmentDuration: time.Second,        // 1000 samples
		OverlapDuration: 200 * time.Millisecond, // 200 samples
	})
}

func TestAssemblerFirstSegmentHasNoOverlap(t *testing.T) {
	a := newTestAssembler(t)

	segments := a.PushFrame(ramp(0, 1000))
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}

	seg := segments[0]
	if seg.Index != 0 {
		t.Errorf("Expected index 0, got %d", seg.Index)
	}
	if seg.Overlap != 0 {
		t.Errorf("Expected zero overlap on first segment, got %v", seg.Overlap)
	}
	if len(seg.Samples) != 1000 {
		t.Errorf("Expected 1000 samples, got %d", len(seg.Samples))
	}
	if seg.StartTime != 0 || seg.EndTime != time.Second {
		t.Errorf("Expected span [0, 1s], got [%v, %v]", seg.StartTime, seg.EndTime)
	}
	if seg.EffectiveStart() != 0 {
		t.Errorf("Expected effective start 0, got %v", seg.EffectiveStart())
	}
}

func TestAssemblerOverlapCarriesPreviousTail(t *testing.T) {
	a := newTestAssembler(t)

	a.PushFrame(ramp(0, 1000))
	segments := a.PushFrame(ramp(1000, 1000))
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}

	seg := segments[0]
	if seg.Overlap != 200*time.Millisecond {
		t.Errorf("Expected 200ms overlap, got %v", seg.Overlap)
	}
	if len(seg.Samples) != 1200 {
		t.Fatalf("Expected 1200 samples (200 overlap + 1000 new), got %d", len(seg.Samples))
	}

	// Leading samples must be the previous segment's tail.
	if seg.Samples[0] != 800 || seg.Samples[199] != 999 {
		t.Errorf("Overlap samples wrong: first=%v last=%v", seg.Samples[0], seg.Samples[199])
	}
	if seg.Samples[200] != 1000 {
		t.Errorf("Expected new audio to start at sample value 1000, got %v", seg.Samples[200])
	}

	if seg.StartTime != time.Second || seg.EndTime != 2*time.Second {
		t.Errorf("Expected span [1s, 2s], got [%v, %v]", seg.StartTime, seg.EndTime)
	}
	if seg.EffectiveStart() != 800*time.Millisecond {
		t.Errorf("Expected effective start 800ms, got %v", seg.EffectiveStart())
	}
}

func TestAssemblerLargeFrameEmitsMultipleSegments(t *testing.T) {
	a := newTestAssembler(t)

	segments := a.PushFrame(ramp(0, 2500))
	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments from a 2.5s frame, got %d", len(segments))
	}
	if segments[0].Index != 0 || segments[1].Index != 1 {
		t.Errorf("Expected indices 0 and 1, got %d and %d", segments[0].Index, segments[1].Index)
	}
	if segments[1].StartTime != time.Second {
		t.Errorf("Expected second segment to start at 1s, got %v", segments[1].StartTime)
	}

	stats := a.GetStats()
	if stats.BufferedSamples != 500 {
		t.Errorf("Expected 500 buffered samples, got %d", stats.BufferedSamples)
	}
}

func TestAssemblerFlushEmitsShortFinal(t *testing.T) {
	a := newTestAssembler(t)

	a.PushFrame(ramp(0, 1000))
	a.PushFrame(ramp(1000, 300))

	final := a.Flush()
	if final == nil {
		t.Fatal("Expected a final segment")
	}
	if !final.IsFinal {
		t.Error("Expected final flag to be set")
	}
	if final.Duration() != 300*time.Millisecond {
		t.Errorf("Expected 300ms final segment, got %v", final.Duration())
	}
	// Overlap seed from the first segment still applies.
	if len(final.Samples) != 500 {
		t.Errorf("Expected 500 samples (200 overlap + 300 new), got %d", len(final.Samples))
	}

	// A second flush has nothing left.
	if again := a.Flush(); again != nil {
		t.Errorf("Expected nil on empty flush, got %+v", again)
	}
}

func TestAssemblerFlushEmptyReturnsNil(t *testing.T) {
	a := newTestAssembler(t)
	if seg := a.Flush(); seg != nil {
		t.Errorf("Expected nil flush on empty assembler, got %+v", seg)
	}
}

func TestAssemblerCursorMonotonic(t *testing.T) {
	a := newTestAssembler(t)

	var lastEnd time.Duration
	for i := 0; i < 5; i++ {
		for _, seg := range a.PushFrame(ramp(i*1000, 1000)) {
			if seg.StartTime != lastEnd {
				t.Errorf("Segment %d starts at %v, expected %v", seg.Index, seg.StartTime, lastEnd)
			}
			if seg.EndTime <= seg.StartTime {
				t.Errorf("Segment %d has non-positive span [%v, %v]", seg.Index, seg.StartTime, seg.EndTime)
			}
			lastEnd = seg.EndTime
		}
	}

	if a.ProcessedDuration() != 5*time.Second {
		t.Errorf("Expected 5s processed, got %v", a.ProcessedDuration())
	}
}

func TestAssemblerContinuityAcrossUnevenFrames(t *testing.T) {
	a := newTestAssembler(t)

	// Push in awkward frame sizes; the non-overlap portions must
	// reconstruct the input exactly.
	var collected []float32
	pos := 0
	for _, n := range []int{333, 777, 1000, 123, 1267} {
		for _, seg := range a.PushFrame(ramp(pos, n)) {
			collected = append(collected, seg.Samples[seg.OverlapSamples():]...)
		}
		pos += n
	}
	if final := a.Flush(); final != nil {
		collected = append(collected, final.Samples[final.OverlapSamples():]...)
	}

	if len(collected) != pos {
		t.Fatalf("Expected %d reconstructed samples, got %d", pos, len(collected))
	}
	for i, v := range collected {
		if v != float32(i) {
			t.Fatalf("Reconstruction diverges at sample %d: got %v", i, v)
		}
	}
}
