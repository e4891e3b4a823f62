package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// ErrEmptySegment is returned when an encoder is handed zero samples.
var ErrEmptySegment = errors.New("audio: cannot encode empty segment")

// Encoder converts a completed sample buffer into a compressed audio payload.
// Implementations must be pure: same samples in, same bytes out, no shared
// state between calls.
type Encoder interface {
	// Encode converts float32 PCM samples at the given rate to wire bytes.
	Encode(samples []float32, sampleRate int) ([]byte, error)
	// Format returns the wire format tag submitted as audio_format.
	Format() string
}

// NewEncoder returns the encoder for a configured format tag.
func NewEncoder(format string) (Encoder, error) {
	switch format {
	case "wav":
		return WAVSegmentEncoder{}, nil
	case "opus":
		return OpusSegmentEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
}

// pcm16 converts float32 samples in [-1, 1] to PCM-16, clamping out-of-range
// input so amplitude spikes cannot overflow the integer conversion.
func pcm16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// WAVSegmentEncoder packages a segment as an uncompressed mono WAV payload.
// Matches the server's default ingest path and keeps tests byte-exact.
type WAVSegmentEncoder struct{}

// Encode implements Encoder.
func (WAVSegmentEncoder) Encode(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySegment
	}
	return EncodeWAV(pcm16(samples), sampleRate)
}

// Format implements Encoder.
func (WAVSegmentEncoder) Format() string { return "wav" }

// opusFrameDuration is 20ms, the frame size the encoder slices segments into.
const opusFrameDuration = 50 // frames per second

// OpusSegmentEncoder compresses a segment as a sequence of Opus packets, each
// prefixed with a big-endian uint16 length. Raw Opus packets are not
// self-delimiting, so the prefix is the framing; the format tag
// "opus-frames" round-trips through the server unchanged.
type OpusSegmentEncoder struct{}

// Encode implements Encoder. The trailing partial frame is zero-padded to a
// full frame so no audio at the segment tail is lost.
func (OpusSegmentEncoder) Encode(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySegment
	}

	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(64000); err != nil {
		return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
	}

	pcm := pcm16(samples)
	frameSize := sampleRate / opusFrameDuration

	var buf bytes.Buffer
	packet := make([]byte, 4000)

	for start := 0; start < len(pcm); start += frameSize {
		end := start + frameSize
		frame := pcm[start:min(end, len(pcm))]
		if len(frame) < frameSize {
			padded := make([]int16, frameSize)
			copy(padded, frame)
			frame = padded
		}

		n, err := enc.Encode(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode failed at sample %d: %w", start, err)
		}

		var prefix [2]byte
		binary.BigEndian.PutUint16(prefix[:], uint16(n))
		buf.Write(prefix[:])
		buf.Write(packet[:n])
	}

	return buf.Bytes(), nil
}

// Format implements Encoder.
func (OpusSegmentEncoder) Format() string { return "opus-frames" }
