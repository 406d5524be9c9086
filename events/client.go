// ABOUTME: SSE client that opens a run's event stream over HTTP and decodes it into Events.
// ABOUTME: A stream that ends before done or error is reported as ErrUnexpectedEnd.

package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389-research/summarize/llm/sse"
	"github.com/2389-research/summarize/stream"
)

// ErrUnexpectedEnd is returned when the transport closes before a terminal event.
var ErrUnexpectedEnd = errors.New("stream ended unexpectedly")

// Client opens event streams served by Handler.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client. Streams are long-lived, so
// the client should not set an overall Timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for the daemon at baseURL.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open connects to the event stream of runID. after resumes from a sequence
// number; zero replays from the beginning.
func (c *Client) Open(ctx context.Context, runID string, mode stream.Mode, after uint64) (*Reader, error) {
	u := fmt.Sprintf("%s/v1/summarize/%s/events?mode=%s", c.baseURL, url.PathEscape(runID), url.QueryEscape(string(mode)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if after > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatUint(after, 10))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("open event stream: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return NewReader(resp.Body), nil
}

// Reader decodes events from an SSE body.
type Reader struct {
	body     io.ReadCloser
	parser   *sse.Parser
	finished bool
	lastSeq  uint64
}

// NewReader wraps an SSE body. Closing the Reader closes body.
func NewReader(body io.ReadCloser) *Reader {
	return &Reader{body: body, parser: sse.NewParser(body)}
}

// Next returns the next event. After a terminal event it returns io.EOF.
// Unknown event kinds are skipped.
func (r *Reader) Next() (Event, error) {
	if r.finished {
		return Event{}, io.EOF
	}
	for {
		frame, err := r.parser.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, ErrUnexpectedEnd
			}
			return Event{}, fmt.Errorf("%w: %v", ErrUnexpectedEnd, err)
		}
		evt, err := Decode(frame)
		if errors.Is(err, ErrUnknownKind) {
			continue
		}
		if err != nil {
			return Event{}, err
		}
		if evt.Seq > 0 {
			r.lastSeq = evt.Seq
		}
		if evt.Kind.Terminal() {
			r.finished = true
		}
		return evt, nil
	}
}

// LastSeq is the sequence number of the last event read, for resumption.
func (r *Reader) LastSeq() uint64 {
	return r.lastSeq
}

// Close releases the transport.
func (r *Reader) Close() error {
	return r.body.Close()
}
