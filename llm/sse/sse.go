// ABOUTME: Server-Sent Events (SSE) framing for the summarize event stream: a parser and an encoder.
// ABOUTME: The parser splits on LF, CRLF or CR and dispatches on blank lines; the encoder writes and flushes frames.

package sse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// MaxLineSize bounds a single SSE line. A cached summary is sent as one
// chunk frame, so this is well above any line the daemon writes.
const MaxLineSize = 16 << 20

// Event is one dispatched SSE frame.
type Event struct {
	Type  string // "event:" field, "message" when absent
	Data  string // "data:" fields joined with newlines
	ID    string // "id:" field of this frame
	Retry int    // "retry:" field in milliseconds, -1 when absent
}

// Parser decodes a stream of SSE frames. A frame is dispatched by a blank
// line; a frame cut off by the end of the stream is dropped.
type Parser struct {
	lines *bufio.Scanner
	cur   pending
	done  bool
}

// pending accumulates the fields of the frame being read.
type pending struct {
	typ     string
	data    []string
	hasData bool
	id      string
	retry   int
}

func newPending() pending {
	return pending{retry: -1}
}

// NewParser returns a Parser reading from r.
func NewParser(r io.Reader) *Parser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxLineSize)
	sc.Split(scanLines)
	return &Parser{lines: sc, cur: newPending()}
}

// Next returns the next dispatched frame, or io.EOF once the stream ends.
func (p *Parser) Next() (Event, error) {
	if p.done {
		return Event{}, io.EOF
	}
	for p.lines.Scan() {
		line := p.lines.Text()
		switch {
		case line == "":
			f := p.cur
			p.cur = newPending()
			if f.hasData {
				return f.event(), nil
			}
		case line[0] == ':':
			// comment
		default:
			p.cur.set(splitField(line))
		}
	}
	p.done = true
	if err := p.lines.Err(); err != nil {
		return Event{}, fmt.Errorf("sse: %w", err)
	}
	return Event{}, io.EOF
}

// splitField splits "name: value" at the first colon, dropping one space
// after it. A line without a colon is a field with an empty value.
func splitField(line string) (name, value string) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return name, strings.TrimPrefix(value, " ")
}

func (f *pending) set(name, value string) {
	switch name {
	case "event":
		f.typ = value
	case "data":
		f.data = append(f.data, value)
		f.hasData = true
	case "id":
		f.id = value
	case "retry":
		if n, err := strconv.Atoi(value); err == nil {
			f.retry = n
		}
	}
}

func (f pending) event() Event {
	typ := f.typ
	if typ == "" {
		typ = "message"
	}
	return Event{Type: typ, Data: strings.Join(f.data, "\n"), ID: f.id, Retry: f.retry}
}

// scanLines is a bufio.SplitFunc that ends lines at LF, CRLF or a lone CR.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	i := bytes.IndexAny(data, "\r\n")
	switch {
	case i < 0:
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	case data[i] == '\n':
		return i + 1, data[:i], nil
	case i+1 < len(data):
		if data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	case atEOF:
		return i + 1, data[:i], nil
	default:
		// A CR at the end of the buffer may be the first half of CRLF.
		return 0, nil, nil
	}
}

// Encoder writes SSE frames to an http.ResponseWriter (or any writer),
// flushing after each frame when the writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder creates an Encoder. If w implements http.Flusher each frame is
// flushed as soon as it is written.
func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

// Encode writes one event frame. Multi-line data is split across several
// data fields so the parser rejoins it with newlines. Empty data is written
// as a single empty data field so the frame is still dispatched.
func (e *Encoder) Encode(evt Event) error {
	var b strings.Builder
	if evt.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", evt.ID)
	}
	if evt.Type != "" && evt.Type != "message" {
		fmt.Fprintf(&b, "event: %s\n", evt.Type)
	}
	if evt.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", evt.Retry)
	}
	for _, line := range strings.Split(evt.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := io.WriteString(e.w, b.String()); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Comment writes a comment line, used as a keepalive that readers ignore.
func (e *Encoder) Comment(text string) error {
	if _, err := fmt.Fprintf(e.w, ": %s\n\n", text); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
