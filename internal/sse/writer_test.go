package sse

import (
	"strings"
	"testing"
)

func TestWriter_SendJSON(t *testing.T) {
	var sb strings.Builder
	flushes := 0
	w := NewWriter(&sb, func() { flushes++ })

	if err := w.SendJSON(map[string]string{"type": "done"}); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}

	if got := sb.String(); got != "data: {\"type\":\"done\"}\n\n" {
		t.Errorf("Unexpected record: %q", got)
	}
	if flushes != 1 {
		t.Errorf("Expected 1 flush, got %d", flushes)
	}
}

func TestWriter_NilFlush(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, nil)

	if err := w.SendJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}
	if !strings.HasSuffix(sb.String(), "\n\n") {
		t.Errorf("Record missing blank-line terminator: %q", sb.String())
	}
}

func TestWriter_UnencodableValue(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, nil)

	if err := w.SendJSON(func() {}); err == nil {
		t.Error("Expected an error for an unencodable value")
	}
	if sb.Len() != 0 {
		t.Errorf("Nothing should be written on encode failure, got %q", sb.String())
	}
}
