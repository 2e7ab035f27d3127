// Package sse decodes Server-Sent-Events framing from an upstream
// streaming response body.
package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// doneSentinel terminates the stream when it appears as a data value.
const doneSentinel = "[DONE]"

// Event is one decoded SSE record. Type is the value of the preceding
// `event:` line, or empty if the block had none. Data is the raw JSON
// payload of one `data:` line.
type Event struct {
	Type string
	Data []byte
}

// Decoder reads SSE framing line by line and yields data-bearing events.
//
// Framing rules:
//   - an `event:` line sets the event type for following `data:` lines
//     until the next blank line resets it
//   - a `data:` line whose value is `[DONE]` ends the stream (io.EOF)
//   - a `data:` line that is not valid JSON is dropped silently; some
//     upstreams emit non-JSON heartbeat lines
//   - any other line is ignored
type Decoder struct {
	scanner   *bufio.Scanner
	eventType string
	done      bool
}

// NewDecoder wraps a streaming response body.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	// Response deltas are small, but tool call payloads can be large.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the next decoded event. It returns io.EOF on the [DONE]
// sentinel or when the transport closes, and the transport error if the
// underlying read fails.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}

	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())

		if line == "" {
			// Blank line ends the current event block.
			d.eventType = ""
			continue
		}

		if strings.HasPrefix(line, "event:") {
			d.eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == doneSentinel {
			d.done = true
			return Event{}, io.EOF
		}

		if !json.Valid([]byte(data)) {
			continue
		}

		return Event{Type: d.eventType, Data: []byte(data)}, nil
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
