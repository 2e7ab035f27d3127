package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestNext_EventAndData(t *testing.T) {
	input := "event: response.created\n" +
		"data: {\"id\": \"resp_1\"}\n" +
		"\n" +
		"data: {\"delta\": \"hi\"}\n" +
		"\n"

	d := NewDecoder(strings.NewReader(input))

	ev, err := d.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if ev.Type != "response.created" {
		t.Errorf("Expected type 'response.created', got '%s'", ev.Type)
	}
	if string(ev.Data) != `{"id": "resp_1"}` {
		t.Errorf("Unexpected data: %s", ev.Data)
	}

	// Blank line should have reset the event type.
	ev, err = d.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if ev.Type != "" {
		t.Errorf("Expected empty type after blank line, got '%s'", ev.Type)
	}
}

func TestNext_DoneSentinel(t *testing.T) {
	input := "data: {\"delta\": \"a\"}\n" +
		"\n" +
		"data: [DONE]\n" +
		"\n" +
		"data: {\"delta\": \"never\"}\n"

	d := NewDecoder(strings.NewReader(input))

	if _, err := d.Next(); err != nil {
		t.Fatalf("Next() failed: %v", err)
	}

	if _, err := d.Next(); err != io.EOF {
		t.Fatalf("Expected io.EOF at [DONE], got %v", err)
	}

	// Decoder stays terminated after the sentinel.
	if _, err := d.Next(); err != io.EOF {
		t.Fatalf("Expected io.EOF after termination, got %v", err)
	}
}

func TestNext_NonJSONDataDropped(t *testing.T) {
	input := "data: : heartbeat\n" +
		"data: {\"delta\": \"real\"}\n" +
		"\n"

	d := NewDecoder(strings.NewReader(input))

	ev, err := d.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if string(ev.Data) != `{"delta": "real"}` {
		t.Errorf("Expected heartbeat to be skipped, got %s", ev.Data)
	}
}

func TestNext_UnknownLinesIgnored(t *testing.T) {
	input := "id: 42\n" +
		"retry: 1000\n" +
		"data: {\"ok\": true}\n"

	d := NewDecoder(strings.NewReader(input))

	ev, err := d.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if string(ev.Data) != `{"ok": true}` {
		t.Errorf("Unexpected data: %s", ev.Data)
	}
}

func TestNext_MultipleDataLinesShareEventType(t *testing.T) {
	input := "event: response.output_text.delta\n" +
		"data: {\"delta\": \"a\"}\n" +
		"data: {\"delta\": \"b\"}\n" +
		"\n"

	d := NewDecoder(strings.NewReader(input))

	for _, want := range []string{"a", "b"} {
		ev, err := d.Next()
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		if ev.Type != "response.output_text.delta" {
			t.Errorf("Expected shared event type, got '%s'", ev.Type)
		}
		if !strings.Contains(string(ev.Data), want) {
			t.Errorf("Expected delta %q, got %s", want, ev.Data)
		}
	}
}

func TestNext_TransportEOF(t *testing.T) {
	d := NewDecoder(strings.NewReader(""))
	if _, err := d.Next(); err != io.EOF {
		t.Fatalf("Expected io.EOF on empty stream, got %v", err)
	}
}

type failingReader struct {
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	return 0, f.err
}

func TestNext_TransportError(t *testing.T) {
	transportErr := errors.New("connection reset")
	d := NewDecoder(&failingReader{err: transportErr})

	_, err := d.Next()
	if !errors.Is(err, transportErr) {
		t.Fatalf("Expected transport error to surface, got %v", err)
	}
}
