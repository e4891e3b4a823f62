package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickyjim626/interpreter-client/internal/audio"
	"github.com/rickyjim626/interpreter-client/internal/interpreter"
	"github.com/rickyjim626/interpreter-client/internal/metrics"
)

// Config contains pipeline configuration.
type Config struct {
	Session interpreter.SessionConfig

	// StopTimeout bounds how long Stop waits for in-flight submissions and
	// pending results before ending the session anyway.
	StopTimeout time.Duration
}

// Deps are the pipeline's collaborators, injected by the caller.
type Deps struct {
	Source     audio.FrameSource
	Assembler  *audio.Assembler
	Encoder    audio.Encoder
	Client     *interpreter.Client
	Correlator *Correlator
	Recorder   *metrics.Recorder
	Metrics    *metrics.Metrics
	History    HistorySink
	Logger     *slog.Logger
}

// Pipeline drives the capture-to-transcript flow: frames from the source are
// assembled into overlapping segments, each segment is encoded and submitted
// concurrently, and results arriving over the event stream are correlated
// back into the ordered transcript.
type Pipeline struct {
	config Config
	deps   Deps
	logger *slog.Logger

	runCtx    context.Context
	runCancel context.CancelFunc

	produceDone chan struct{}
	eventsDone  chan struct{}
	submitWG    sync.WaitGroup

	mu        sync.Mutex
	startedAt time.Time
	sessionID string
	summary   *interpreter.SessionSummary
	sourceLng string
}

// New creates a pipeline. All deps except History and Metrics are required.
func New(config Config, deps Deps) (*Pipeline, error) {
	if deps.Source == nil || deps.Assembler == nil || deps.Encoder == nil ||
		deps.Client == nil || deps.Correlator == nil || deps.Recorder == nil {
		return nil, fmt.Errorf("pipeline is missing a required dependency")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 15 * time.Second
	}
	return &Pipeline{
		config:      config,
		deps:        deps,
		logger:      deps.Logger,
		produceDone: make(chan struct{}),
		eventsDone:  make(chan struct{}),
	}, nil
}

// Start creates the remote session and begins consuming the frame source.
func (p *Pipeline) Start(ctx context.Context) error {
	handle, err := p.deps.Client.CreateSession(ctx, p.config.Session)
	if err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	p.mu.Lock()
	p.sessionID = handle.SessionID
	p.startedAt = time.Now()
	p.mu.Unlock()

	p.runCtx, p.runCancel = context.WithCancel(context.Background())

	frames, err := p.deps.Source.Start(p.runCtx)
	if err != nil {
		p.runCancel()
		return fmt.Errorf("failed to start audio source: %w", err)
	}

	go p.produceLoop(frames)
	go p.eventLoop()

	p.logger.Info("Pipeline started",
		slog.String("session_id", handle.SessionID),
		slog.String("target_language", p.config.Session.TargetLanguage),
	)

	return nil
}

// Stop drains the pipeline and ends the session: the source is stopped, a
// final short segment is flushed, in-flight submissions and pending results
// are waited on up to StopTimeout, and the session is ended regardless.
// The finished session is persisted to history when a sink is configured.
func (p *Pipeline) Stop(ctx context.Context) (*Session, error) {
	deadline := time.Now().Add(p.config.StopTimeout)

	p.runCancel()
	<-p.produceDone

	p.waitSubmissions(deadline)
	p.waitPending(deadline)

	end, err := p.deps.Client.EndSession(ctx)
	if err != nil {
		p.logger.Warn("Failed to end session", slog.String("error", err.Error()))
	}
	<-p.eventsDone

	session := p.finalize(end)

	if p.deps.History != nil {
		if err := p.deps.History.SaveSession(session); err != nil {
			p.logger.Warn("Failed to persist session history",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	p.logger.Info("Pipeline stopped",
		slog.String("session_id", session.ID),
		slog.Int("segments", len(session.Segments)),
		slog.Duration("audio_duration", session.TotalDuration),
	)

	return session, nil
}

// Transcript returns the current ordered transcript snapshot.
func (p *Pipeline) Transcript() []Entry {
	return p.deps.Correlator.Transcript()
}

func (p *Pipeline) produceLoop(frames <-chan audio.Frame) {
	defer close(p.produceDone)

	for frame := range frames {
		for _, segment := range p.deps.Assembler.PushFrame(frame.Samples) {
			p.dispatch(segment)
		}
	}

	// Source exhausted or canceled; flush whatever is buffered as the
	// final short segment.
	if final := p.deps.Assembler.Flush(); final != nil {
		p.dispatch(*final)
	}
}

func (p *Pipeline) dispatch(segment audio.Segment) {
	clientID := p.deps.Correlator.AddSegment(&segment)
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordSegmentAssembled()
		p.deps.Metrics.SetPendingSegments(p.deps.Correlator.PendingCount())
	}

	p.submitWG.Add(1)
	go func() {
		defer p.submitWG.Done()
		p.submit(segment, clientID)
	}()
}

func (p *Pipeline) submit(segment audio.Segment, clientID string) {
	rec := p.deps.Recorder

	rec.MarkEncodingStart(clientID)
	encodeStart := time.Now()
	data, err := p.deps.Encoder.Encode(segment.Samples, segment.SampleRate)
	rec.MarkEncodingEnd(clientID)
	if err != nil {
		p.logger.Error("Segment encode failed",
			slog.Int("segment_index", segment.Index),
			slog.String("error", err.Error()),
		)
		p.deps.Correlator.Fail(clientID, err)
		return
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordEncode(time.Since(encodeStart).Seconds())
	}

	rec.MarkSubmitSent(clientID)
	submitStart := time.Now()
	ack, err := p.deps.Client.SubmitSegment(context.Background(),
		data, segment.EffectiveStart(), segment.EndTime, segment.IsFinal)
	if err != nil {
		p.logger.Error("Segment submission failed",
			slog.Int("segment_index", segment.Index),
			slog.String("error", err.Error()),
		)
		p.deps.Correlator.Fail(clientID, err)
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordSubmitFailure()
		}
		return
	}
	rec.MarkSubmitConfirmed(clientID)
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordSegmentSubmitted(time.Since(submitStart).Seconds(), len(data))
	}

	p.deps.Correlator.Confirm(clientID, ack.SegmentID)

	// Synchronous servers return the result inline instead of streaming it.
	if ack.Result != nil {
		p.applyResult(ack.Result)
	}
}

func (p *Pipeline) eventLoop() {
	defer close(p.eventsDone)

	for event := range p.deps.Client.Events() {
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordEvent(string(event.Type))
		}

		switch event.Type {
		case interpreter.EventReady:
			p.logger.Debug("Event stream ready")

		case interpreter.EventSegment:
			p.applyResult(event.Segment)

		case interpreter.EventError:
			p.logger.Warn("Server stream error", slog.String("message", event.Err.Message))
			if p.deps.Metrics != nil {
				p.deps.Metrics.RecordStreamError()
			}

		case interpreter.EventHeartbeat:
			p.logger.Debug("Stream heartbeat")

		case interpreter.EventEnded:
			p.mu.Lock()
			p.summary = event.Ended.Summary
			p.mu.Unlock()

		case interpreter.EventUnknown:
			p.logger.Debug("Ignoring unknown stream event", slog.String("type", event.RawType))
		}
	}
}

func (p *Pipeline) applyResult(result *interpreter.SegmentResult) {
	p.deps.Correlator.Apply(result)

	if result.DetectedLanguage != "" {
		p.mu.Lock()
		if p.sourceLng == "" {
			p.sourceLng = result.DetectedLanguage
		}
		p.mu.Unlock()
	}

	if p.deps.Metrics != nil {
		p.deps.Metrics.SetPendingSegments(p.deps.Correlator.PendingCount())
		if m, ok := p.deps.Recorder.Snapshot(result.SegmentID); ok {
			if d := m.EndToEndDuration(); d > 0 {
				p.deps.Metrics.RecordEndToEnd(d.Seconds())
			}
		}
	}
}

func (p *Pipeline) waitSubmissions(deadline time.Time) {
	done := make(chan struct{})
	go func() {
		p.submitWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Until(deadline)):
		p.logger.Warn("Timed out waiting for in-flight submissions")
	}
}

func (p *Pipeline) waitPending(deadline time.Time) {
	for p.deps.Correlator.PendingCount() > 0 {
		if time.Now().After(deadline) {
			p.logger.Warn("Timed out waiting for pending results",
				slog.Int("pending", p.deps.Correlator.PendingCount()),
			)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (p *Pipeline) finalize(end *interpreter.EndResponse) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	session := &Session{
		ID:             p.sessionID,
		SourceLanguage: p.sourceLng,
		TargetLanguage: p.config.Session.TargetLanguage,
		StartedAt:      p.startedAt,
		TotalDuration:  p.deps.Assembler.ProcessedDuration(),
		Segments:       p.deps.Correlator.Transcript(),
	}
	if end != nil && end.Summary != nil {
		p.summary = end.Summary
	}
	return session
}

// Summary returns the server-reported session summary, nil until the session
// has ended or the server never sent one.
func (p *Pipeline) Summary() *interpreter.SessionSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}
