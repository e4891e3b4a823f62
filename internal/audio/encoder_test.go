package audio

import (
	"errors"
	"testing"
)

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		format      string
		wantFormat  string
		expectError bool
	}{
		{format: "wav", wantFormat: "wav"},
		{format: "opus", wantFormat: "opus-frames"},
		{format: "mp3", expectError: true},
		{format: "", expectError: true},
	}

	for _, tt := range tests {
		enc, err := NewEncoder(tt.format)
		if tt.expectError {
			if err == nil {
				t.Errorf("NewEncoder(%q): expected error, got none", tt.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewEncoder(%q): unexpected error: %v", tt.format, err)
			continue
		}
		if enc.Format() != tt.wantFormat {
			t.Errorf("NewEncoder(%q).Format() = %q, want %q", tt.format, enc.Format(), tt.wantFormat)
		}
	}
}

func TestWAVEncoderEmptySegment(t *testing.T) {
	_, err := WAVSegmentEncoder{}.Encode(nil, 16000)
	if !errors.Is(err, ErrEmptySegment) {
		t.Errorf("Expected ErrEmptySegment, got %v", err)
	}
}

func TestWAVEncoderRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -0.25, 1.0, -1.0, 0}

	data, err := WAVSegmentEncoder{}.Encode(samples, 16000)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, sampleRate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if sampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", sampleRate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}

	for i, want := range samples {
		got := float32(decoded[i]) / 32767.0
		if diff := got - want; diff > 0.001 || diff < -0.001 {
			t.Errorf("Sample %d: got %v, want %v", i, got, want)
		}
	}
}

func TestPCM16Clamping(t *testing.T) {
	pcm := pcm16([]float32{2.0, -2.0, 0})

	if pcm[0] != 32767 {
		t.Errorf("Expected +2.0 to clamp to 32767, got %d", pcm[0])
	}
	if pcm[1] != -32767 {
		t.Errorf("Expected -2.0 to clamp to -32767, got %d", pcm[1])
	}
	if pcm[2] != 0 {
		t.Errorf("Expected 0 to stay 0, got %d", pcm[2])
	}
}
