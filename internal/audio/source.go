package audio

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Frame is one capture callback's worth of mono PCM samples.
type Frame struct {
	Samples  []float32
	Captured time.Time
}

// FrameSource abstracts the platform capture device. Implementations push
// frames into a bounded channel; the channel is closed when the source is
// exhausted or the context is cancelled.
type FrameSource interface {
	// Start begins delivery and returns the frame channel. The channel is
	// closed when delivery ends; Start must not be called twice.
	Start(ctx context.Context) (<-chan Frame, error)
	// SampleRate returns the fixed sample rate of delivered frames.
	SampleRate() int
}

// frameChannelDepth bounds the producer so a stalled consumer backpressures
// capture instead of growing memory.
const frameChannelDepth = 32

// FileSource replays a mono 16-bit WAV file as capture frames, standing in
// for a live microphone. With Realtime set, frames are paced at the file's
// actual rate.
type FileSource struct {
	samples    []float32
	sampleRate int
	frameSize  int
	realtime   bool
}

// FileSourceConfig contains configuration for a WAV file frame source.
type FileSourceConfig struct {
	Path          string
	FrameDuration time.Duration // per-frame span; default 20ms
	Realtime      bool
}

// NewFileSource reads and decodes the WAV file up front so Start cannot fail
// mid-stream.
func NewFileSource(config FileSourceConfig) (*FileSource, error) {
	data, err := os.ReadFile(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file %s: %w", config.Path, err)
	}

	pcm, sampleRate, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio file %s: %w", config.Path, err)
	}

	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}

	frameDuration := config.FrameDuration
	if frameDuration <= 0 {
		frameDuration = 20 * time.Millisecond
	}
	frameSize := int(frameDuration.Seconds() * float64(sampleRate))
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame duration %v too short for sample rate %d", frameDuration, sampleRate)
	}

	return &FileSource{
		samples:    samples,
		sampleRate: sampleRate,
		frameSize:  frameSize,
		realtime:   config.Realtime,
	}, nil
}

// SampleRate implements FrameSource.
func (f *FileSource) SampleRate() int { return f.sampleRate }

// Duration returns the total duration of the underlying file.
func (f *FileSource) Duration() time.Duration {
	return time.Duration(float64(len(f.samples)) / float64(f.sampleRate) * float64(time.Second))
}

// Start implements FrameSource.
func (f *FileSource) Start(ctx context.Context) (<-chan Frame, error) {
	frames := make(chan Frame, frameChannelDepth)

	go func() {
		defer close(frames)

		var ticker *time.Ticker
		if f.realtime {
			ticker = time.NewTicker(time.Duration(float64(f.frameSize) / float64(f.sampleRate) * float64(time.Second)))
			defer ticker.Stop()
		}

		for start := 0; start < len(f.samples); start += f.frameSize {
			end := start + f.frameSize
			if end > len(f.samples) {
				end = len(f.samples)
			}

			if ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}

			frame := Frame{
				Samples:  f.samples[start:end],
				Captured: time.Now(),
			}

			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames, nil
}
