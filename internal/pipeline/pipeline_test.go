package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickyjim626/interpreter-client/internal/audio"
	"github.com/rickyjim626/interpreter-client/internal/interpreter"
	"github.com/rickyjim626/interpreter-client/internal/metrics"
)

// stubSource emits a fixed sample buffer in equal frames, then closes.
type stubSource struct {
	samples    []float32
	frameSize  int
	sampleRate int
}

func (s *stubSource) SampleRate() int { return s.sampleRate }

func (s *stubSource) Start(ctx context.Context) (<-chan audio.Frame, error) {
	out := make(chan audio.Frame)
	go func() {
		defer close(out)
		for start := 0; start < len(s.samples); start += s.frameSize {
			end := start + s.frameSize
			if end > len(s.samples) {
				end = len(s.samples)
			}
			select {
			case out <- audio.Frame{Samples: s.samples[start:end], Captured: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// memorySink records saved sessions.
type memorySink struct {
	mu       sync.Mutex
	sessions []*Session
}

func (m *memorySink) SaveSession(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return nil
}

// sessionBackend is a fake interpreter backend that queues submissions and
// streams their results back asynchronously.
type sessionBackend struct {
	nextID     int32
	respond    bool // deliver results over the stream
	resultGap  time.Duration
	eventQueue chan string
}

func newSessionBackend(respond bool) *sessionBackend {
	return &sessionBackend{
		respond:    respond,
		resultGap:  10 * time.Millisecond,
		eventQueue: make(chan string, 64),
	}
}

func (b *sessionBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/asr/v1/interpreter/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"session_id": "sess-p"})
	})

	mux.HandleFunc("/asr/v1/interpreter/sessions/sess-p/process", func(w http.ResponseWriter, r *http.Request) {
		var req interpreter.ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		id := atomic.AddInt32(&b.nextID, 1)
		serverID := fmt.Sprintf("srv-%d", id)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"segment_id":    serverID,
			"segment_index": id - 1,
			"queued_at":     time.Now(),
		})

		if b.respond {
			go func() {
				time.Sleep(b.resultGap)
				b.eventQueue <- fmt.Sprintf(
					"event: segment\ndata: {\"segment_id\":%q,\"original_text\":\"text for %s\",\"translated_text\":\"translated %s\",\"detected_language\":\"uk\"}\n\n",
					serverID, serverID, serverID)
			}()
		}
	})

	mux.HandleFunc("/asr/v1/interpreter/sessions/sess-p/stream", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: ready\ndata: {\"session_id\":\"sess-p\"}\n\n")
		flusher.Flush()

		for {
			select {
			case ev := <-b.eventQueue:
				fmt.Fprint(w, ev)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	mux.HandleFunc("/asr/v1/interpreter/sessions/sess-p", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			json.NewEncoder(w).Encode(map[string]any{
				"session_id": "sess-p",
				"summary":    map[string]any{"total_segments": 3, "total_duration": 2.5},
			})
			return
		}
		http.NotFound(w, r)
	})

	return mux
}

func newTestPipeline(t *testing.T, baseURL string, sink HistorySink, stopTimeout time.Duration) (*Pipeline, *Correlator) {
	t.Helper()

	recorder := metrics.NewRecorder()
	correlator := NewCorrelator(testLogger(), recorder)

	client, err := interpreter.NewClient(interpreter.Config{
		BaseURL:       baseURL,
		AudioFormat:   "wav",
		Timeout:       5 * time.Second,
		MaxRetries:    0,
		MaxConcurrent: 4,
	}, interpreter.StaticToken("t"), testLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	// 2.5 seconds of audio at 1kHz: two full 1s segments plus a 0.5s final.
	samples := make([]float32, 2500)
	source := &stubSource{samples: samples, frameSize: 250, sampleRate: 1000}

	assembler := audio.NewAssembler(audio.AssemblerConfig{
		SampleRate:      1000,
		SegmentDuration: time.Second,
		OverlapDuration: 200 * time.Millisecond,
	})

	p, err := New(Config{
		Session: interpreter.SessionConfig{
			TargetLanguage:    "en",
			OverlapDuration:   0.2,
			EnableTranslation: true,
		},
		StopTimeout: stopTimeout,
	}, Deps{
		Source:     source,
		Assembler:  assembler,
		Encoder:    audio.WAVSegmentEncoder{},
		Client:     client,
		Correlator: correlator,
		Recorder:   recorder,
		History:    sink,
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("New pipeline failed: %v", err)
	}
	return p, correlator
}

func TestPipelineEndToEnd(t *testing.T) {
	backend := newSessionBackend(true)
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	sink := &memorySink{}
	p, _ := newTestPipeline(t, srv.URL, sink, 10*time.Second)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	session, err := p.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if session.ID != "sess-p" {
		t.Errorf("Expected session sess-p, got %q", session.ID)
	}
	if len(session.Segments) != 3 {
		t.Fatalf("Expected 3 segments (2 full + final), got %d", len(session.Segments))
	}
	for i, entry := range session.Segments {
		if entry.Status != StatusCompleted {
			t.Errorf("Segment %d not completed: %s (%s)", i, entry.Status, entry.Error)
		}
		if entry.OriginalText == "" {
			t.Errorf("Segment %d has no text", i)
		}
	}
	if !session.Segments[2].IsFinal {
		t.Error("Expected last segment to be final")
	}
	if session.TotalDuration != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s processed, got %v", session.TotalDuration)
	}
	if session.SourceLanguage != "uk" {
		t.Errorf("Expected detected language uk, got %q", session.SourceLanguage)
	}

	summary := p.Summary()
	if summary == nil || summary.TotalSegments != 3 {
		t.Errorf("Expected end summary with 3 segments, got %+v", summary)
	}

	sink.mu.Lock()
	saved := len(sink.sessions)
	sink.mu.Unlock()
	if saved != 1 {
		t.Errorf("Expected 1 saved session, got %d", saved)
	}
}

func TestPipelineStopWithPendingResults(t *testing.T) {
	backend := newSessionBackend(false) // submissions queue but never resolve
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	p, correlator := newTestPipeline(t, srv.URL, nil, 300*time.Millisecond)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	session, err := p.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Stop took too long: %v", elapsed)
	}

	if len(session.Segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(session.Segments))
	}
	for i, entry := range session.Segments {
		if entry.Status != StatusTranscribing {
			t.Errorf("Segment %d should still be transcribing, got %s", i, entry.Status)
		}
	}
	if correlator.PendingCount() != 3 {
		t.Errorf("Expected 3 pending after timed-out stop, got %d", correlator.PendingCount())
	}
}
