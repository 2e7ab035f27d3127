package sse

import (
	"encoding/json"
	"fmt"
	"io"
)

// Writer emits SSE data records. Flush is called after every record so
// events reach the client as they happen rather than when a buffer fills.
type Writer struct {
	w     io.Writer
	flush func()
}

// NewWriter wraps w; flush may be nil when w does not buffer.
func NewWriter(w io.Writer, flush func()) *Writer {
	return &Writer{w: w, flush: flush}
}

// SendJSON writes v as a single data record.
func (w *Writer) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if w.flush != nil {
		w.flush()
	}
	return nil
}
