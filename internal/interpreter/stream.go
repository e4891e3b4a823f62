package interpreter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// openStream starts the event stream reader goroutine for the session.
// Must be called exactly once, after the session is created.
func (c *Client) openStream(sessionID string) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.streamCancel = cancel
	c.streamDone = make(chan struct{})
	done := c.streamDone
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer close(c.events)

		if err := c.readStream(ctx, sessionID); err != nil && ctx.Err() == nil {
			c.logger.Warn("Event stream terminated",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
			select {
			case c.events <- Event{Type: EventError, Err: &StreamError{Message: err.Error()}}:
				c.countEvent()
			default:
			}
		}
	}()
}

// closeStream stops the reader, if running, and waits for it to exit.
func (c *Client) closeStream() {
	c.mu.Lock()
	cancel := c.streamCancel
	done := c.streamDone
	c.streamCancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// streamURL resolves the event stream endpoint. The create response may carry
// an explicit stream URL; a relative one is resolved against the base URL.
func (c *Client) streamURL(sessionID string) string {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()

	if handle != nil && handle.StreamURL != "" {
		if strings.HasPrefix(handle.StreamURL, "http://") || strings.HasPrefix(handle.StreamURL, "https://") {
			return handle.StreamURL
		}
		return strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(handle.StreamURL, "/")
	}
	return c.sessionURL(sessionID + "/stream")
}

// readStream holds the SSE connection open and delivers parsed events until
// the stream ends or ctx is canceled. An "ended" event is delivered and then
// terminates the reader.
func (c *Client) readStream(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL(sessionID), nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: string(body)}
	}

	c.logger.Info("Event stream connected", slog.String("session_id", sessionID))

	reader := bufio.NewReader(resp.Body)
	var block []string
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			if line != "" {
				block = append(block, line)
				continue
			}

			// Blank line terminates an event block.
			if len(block) > 0 {
				event, ok := c.parseBlock(sessionID, block)
				block = block[:0]
				if ok {
					select {
					case c.events <- event:
						c.countEvent()
					case <-ctx.Done():
						return nil
					}
					if event.Type == EventEnded {
						return nil
					}
				}
			}
		}

		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
	}
}

// parseBlock validates a raw event block; malformed payloads are logged and
// dropped so one bad event cannot kill the stream.
func (c *Client) parseBlock(sessionID string, lines []string) (Event, bool) {
	event, err := parseEventBlock(lines)
	if err != nil {
		c.logger.Warn("Discarding malformed stream event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return Event{}, false
	}
	return event, true
}

// parseEventBlock parses one server-sent event block: "event:" names the
// type, one or more "data:" lines carry the JSON payload. Unknown event
// types are surfaced as EventUnknown with the raw payload attached.
func parseEventBlock(lines []string) (Event, error) {
	var eventType string
	var data []string

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// Comment line, used by servers as keepalive filler.
		}
	}

	raw := strings.Join(data, "\n")
	payload := []byte(raw)
	event := Event{RawType: eventType, Raw: raw}

	switch EventType(eventType) {
	case EventReady:
		event.Type = EventReady
		event.Ready = &ReadyEvent{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, event.Ready); err != nil {
				return Event{}, fmt.Errorf("invalid ready payload: %w", err)
			}
		}

	case EventSegment:
		event.Type = EventSegment
		event.Segment = &SegmentResult{}
		if err := json.Unmarshal(payload, event.Segment); err != nil {
			return Event{}, fmt.Errorf("invalid segment payload: %w", err)
		}
		if event.Segment.SegmentID == "" {
			return Event{}, fmt.Errorf("segment event carries no segment_id")
		}

	case EventError:
		event.Type = EventError
		event.Err = &StreamError{}
		if err := json.Unmarshal(payload, event.Err); err != nil {
			return Event{}, fmt.Errorf("invalid error payload: %w", err)
		}

	case EventHeartbeat:
		event.Type = EventHeartbeat

	case EventEnded:
		event.Type = EventEnded
		event.Ended = &EndedEvent{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, event.Ended); err != nil {
				return Event{}, fmt.Errorf("invalid ended payload: %w", err)
			}
		}

	default:
		event.Type = EventUnknown
	}

	return event, nil
}
