package interpreter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// sessionBasePath is the interpreter session API root, relative to BaseURL.
const sessionBasePath = "/asr/v1/interpreter/sessions"

// State is the session lifecycle state of the client.
type State int

const (
	StateIdle State = iota
	StateCreating
	StateActive
	StateEnding
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreating:
		return "creating"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNoSession is returned for operations that require an active session.
	ErrNoSession = errors.New("interpreter: no active session")
	// ErrSessionActive is returned when create is called on an active session.
	ErrSessionActive = errors.New("interpreter: session already active")
	// ErrSessionClosed is returned for operations on a closed client.
	ErrSessionClosed = errors.New("interpreter: session closed")
)

// Config contains session client configuration.
type Config struct {
	BaseURL       string
	AudioFormat   string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int

	// OnRetry, if set, is invoked once per submission retry attempt.
	OnRetry func()
}

// Client owns the lifecycle of one remote interpreter session and its
// server-push event stream. A client runs exactly one session; closed is
// terminal.
type Client struct {
	config     Config
	tokens     TokenProvider
	logger     *slog.Logger
	httpClient *http.Client
	// streamClient carries no request timeout: the event stream is held open
	// for the session lifetime.
	streamClient *http.Client
	backoffBase  time.Duration

	semaphore chan struct{}

	mu         sync.Mutex
	state      State
	sessionID  string
	handle     *SessionHandle
	createDone chan struct{}
	createErr  error

	events       chan Event
	streamCancel context.CancelFunc
	streamDone   chan struct{}

	// Statistics
	totalRequests   uint64
	failedRequests  uint64
	totalRetries    uint64
	eventsDelivered uint64
}

// ClientStats represents protocol client statistics.
type ClientStats struct {
	State           string `json:"state"`
	TotalRequests   uint64 `json:"total_requests"`
	FailedRequests  uint64 `json:"failed_requests"`
	TotalRetries    uint64 `json:"total_retries"`
	EventsDelivered uint64 `json:"events_delivered"`
	ActiveRequests  int    `json:"active_requests"`
}

// NewClient creates a new interpreter session client.
func NewClient(config Config, tokens TokenProvider, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	if config.AudioFormat == "" {
		config.AudioFormat = "wav"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		config:       config,
		tokens:       tokens,
		logger:       logger,
		httpClient:   &http.Client{Timeout: config.Timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		backoffBase:  time.Second,
		semaphore:    make(chan struct{}, config.MaxConcurrent),
		events:       make(chan Event, 64),
	}, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the server-assigned session id, empty before create.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Events returns the server-push event channel. It is closed when the event
// stream ends, whether by session end, server "ended" event, or disconnect.
func (c *Client) Events() <-chan Event {
	return c.events
}

// CreateSession creates the server-side session and opens its event stream.
// A second caller arriving while a create is in flight waits on the same
// outcome rather than issuing a duplicate request. Network failure returns
// the client to idle so the caller can retry.
func (c *Client) CreateSession(ctx context.Context, config SessionConfig) (*SessionHandle, error) {
	c.mu.Lock()
	switch c.state {
	case StateActive:
		c.mu.Unlock()
		return nil, ErrSessionActive
	case StateEnding, StateClosed:
		c.mu.Unlock()
		return nil, ErrSessionClosed
	case StateCreating:
		done := c.createDone
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.handle, c.createErr
	}
	c.state = StateCreating
	c.createDone = make(chan struct{})
	done := c.createDone
	c.mu.Unlock()

	handle, err := c.doCreate(ctx, config)

	c.mu.Lock()
	if err != nil {
		c.state = StateIdle
		c.createErr = err
	} else {
		c.state = StateActive
		c.sessionID = handle.SessionID
		c.handle = handle
		c.createErr = nil
	}
	c.mu.Unlock()

	if err == nil {
		c.openStream(handle.SessionID)
	}
	close(done)

	return handle, err
}

func (c *Client) doCreate(ctx context.Context, config SessionConfig) (*SessionHandle, error) {
	var handle SessionHandle
	if err := c.doJSON(ctx, http.MethodPost, c.sessionURL(""), config, &handle); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if handle.SessionID == "" {
		return nil, fmt.Errorf("failed to create session: response carries no session_id")
	}

	c.logger.Info("Interpreter session created",
		slog.String("session_id", handle.SessionID),
		slog.String("target_language", config.TargetLanguage),
		slog.Bool("enable_translation", config.EnableTranslation),
	)

	return &handle, nil
}

// SubmitSegment submits one encoded audio segment. Both 202-accepted and
// 2xx-with-body responses are success; the returned ack normalizes them.
// Retries use exponential backoff and are capped; concurrency is bounded by
// the configured semaphore.
func (c *Client) SubmitSegment(ctx context.Context, audio []byte, start, end time.Duration, isFinal bool) (*SubmissionAck, error) {
	c.mu.Lock()
	if c.state != StateActive {
		state := c.state
		c.mu.Unlock()
		if state == StateClosed || state == StateEnding {
			return nil, ErrSessionClosed
		}
		return nil, ErrNoSession
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	request := ProcessRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		AudioFormat: c.config.AudioFormat,
		StartTime:   start.Seconds(),
		EndTime:     end.Seconds(),
		IsFinal:     isFinal,
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.countRetry()
			if c.config.OnRetry != nil {
				c.config.OnRetry()
			}

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoffBase
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		ack, err := c.doSubmit(ctx, sessionID, request)
		if err == nil {
			return ack, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}

	c.countFailure()
	return nil, fmt.Errorf("segment submission failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doSubmit(ctx context.Context, sessionID string, request ProcessRequest) (*SubmissionAck, error) {
	status, body, err := c.doRequest(ctx, http.MethodPost, c.sessionURL(sessionID+"/process"), request)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusAccepted:
		var queued queuedAck
		if err := json.Unmarshal(body, &queued); err != nil {
			return nil, fmt.Errorf("failed to parse queued ack: %w", err)
		}
		return &SubmissionAck{
			SegmentID:    queued.SegmentID,
			SegmentIndex: queued.SegmentIndex,
			Async:        true,
			QueuedAt:     queued.QueuedAt,
		}, nil

	case len(body) > 0:
		var result SegmentResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to parse inline result: %w", err)
		}
		return &SubmissionAck{
			SegmentID:    result.SegmentID,
			SegmentIndex: result.SegmentIndex,
			Result:       &result,
		}, nil

	default:
		// 2xx with an empty body: accepted, result comes via the stream.
		return &SubmissionAck{Async: true}, nil
	}
}

// GetStatus fetches the server-side session status snapshot.
func (c *Client) GetStatus(ctx context.Context) (*SessionStatus, error) {
	sessionID, err := c.requireSession()
	if err != nil {
		return nil, err
	}

	var status SessionStatus
	if err := c.doJSON(ctx, http.MethodGet, c.sessionURL(sessionID), nil, &status); err != nil {
		return nil, fmt.Errorf("failed to get session status: %w", err)
	}
	return &status, nil
}

// ListStoredAudio fetches references to audio segments retained server-side.
func (c *Client) ListStoredAudio(ctx context.Context) ([]StoredAudio, error) {
	sessionID, err := c.requireSession()
	if err != nil {
		return nil, err
	}

	var listing struct {
		Segments []StoredAudio `json:"segments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.sessionURL(sessionID+"/audio"), nil, &listing); err != nil {
		return nil, fmt.Errorf("failed to list stored audio: %w", err)
	}
	return listing.Segments, nil
}

// EndSession closes the event stream, then issues the session delete. A
// response without a summary (no audio processed) is a valid outcome.
// Transport failure is logged and swallowed: local state moves to closed
// regardless, since a stuck local session is worse than slightly inconsistent
// server accounting.
func (c *Client) EndSession(ctx context.Context) (*EndResponse, error) {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateCreating:
		c.mu.Unlock()
		return nil, ErrNoSession
	case StateEnding, StateClosed:
		c.mu.Unlock()
		return nil, ErrSessionClosed
	}
	c.state = StateEnding
	sessionID := c.sessionID
	c.mu.Unlock()

	// Stop the stream before teardown so a pending read cannot race the
	// server closing the session.
	c.closeStream()

	status, body, err := c.doRequest(ctx, http.MethodDelete, c.sessionURL(sessionID), nil)

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Session end failed, forcing local close",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return &EndResponse{SessionID: sessionID}, nil
	}

	response := &EndResponse{SessionID: sessionID}
	if len(body) > 0 {
		if err := json.Unmarshal(body, response); err != nil {
			c.logger.Warn("Session end response unparseable",
				slog.String("session_id", sessionID),
				slog.Int("status", status),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.Info("Interpreter session ended",
		slog.String("session_id", sessionID),
		slog.Bool("has_summary", response.Summary != nil),
	)

	return response, nil
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ClientStats{
		State:           c.state.String(),
		TotalRequests:   c.totalRequests,
		FailedRequests:  c.failedRequests,
		TotalRetries:    c.totalRetries,
		EventsDelivered: c.eventsDelivered,
		ActiveRequests:  len(c.semaphore),
	}
}

func (c *Client) requireSession() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return "", ErrNoSession
	}
	return c.sessionID, nil
}

func (c *Client) sessionURL(suffix string) string {
	base := strings.TrimRight(c.config.BaseURL, "/") + sessionBasePath
	if suffix == "" {
		return base
	}
	return base + "/" + suffix
}

// doJSON performs a request and decodes a 2xx JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	_, respBody, err := c.doRequest(ctx, method, url, body)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return nil
}

// doRequest performs a single authenticated HTTP request and returns the
// status and body for any 2xx response; non-2xx becomes a *statusError.
func (c *Client) doRequest(ctx context.Context, method, url string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if err := c.authorize(req); err != nil {
		return 0, nil, err
	}

	c.countRequest()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	return resp.StatusCode, respBody, nil
}

// authorize attaches a bearer token fetched from the provider. Tokens are
// never cached here; expiry is the provider's concern.
func (c *Client) authorize(req *http.Request) error {
	token, err := c.tokens.Token(req.Context())
	if err != nil {
		return fmt.Errorf("failed to obtain bearer token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// statusError is a non-2xx HTTP response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.code, e.body)
}

// isRetryable reports whether a submission error is worth retrying: server
// errors, rate limiting and transport failures are; client errors are not.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Remaining errors are transport-level (connection refused, reset,
	// timeout) and typically transient.
	var ue *url.Error
	return errors.As(err, &ue)
}

func (c *Client) countRequest() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
}

func (c *Client) countFailure() {
	c.mu.Lock()
	c.failedRequests++
	c.mu.Unlock()
}

func (c *Client) countRetry() {
	c.mu.Lock()
	c.totalRetries++
	c.mu.Unlock()
}

func (c *Client) countEvent() {
	c.mu.Lock()
	c.eventsDelivered++
	c.mu.Unlock()
}
