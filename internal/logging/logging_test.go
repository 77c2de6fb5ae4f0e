package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerPrefix(t *testing.T) {
	var buf bytes.Buffer
	f := NewWithWriter(&buf, LevelInfo)

	f.Logger("HTTP").Printf("listening on %s", ":8000")

	if !strings.HasPrefix(buf.String(), "[HTTP] ") {
		t.Errorf("expected component prefix, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "logging_test.go") {
		t.Error("info level should not include file names")
	}
}

func TestLoggerDebugIncludesFile(t *testing.T) {
	var buf bytes.Buffer
	f := NewWithWriter(&buf, LevelDebug)

	f.Logger("SYNTH").Print("reply")

	if !strings.Contains(buf.String(), "logging_test.go") {
		t.Errorf("debug level should include file names, got %q", buf.String())
	}
	if !f.Debug() {
		t.Error("expected debug")
	}
}

func TestLoggerOff(t *testing.T) {
	var buf bytes.Buffer
	f := NewWithWriter(&buf, LevelOff)

	f.Logger("INGEST").Print("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
