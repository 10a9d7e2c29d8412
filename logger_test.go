package fetchkit

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestSimpleLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{out: log.New(&buf, "", 0)}

	l.Info("request complete", "method", "GET", "status", 200)

	line := buf.String()
	for _, want := range []string{"INFO", "request complete", "method=GET", "status=200"} {
		if !strings.Contains(line, want) {
			t.Errorf("Log line %q missing %q", line, want)
		}
	}
}

func TestSimpleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{out: log.New(&buf, "", 0)}

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		if !strings.Contains(out, level) {
			t.Errorf("Output missing level %s: %q", level, out)
		}
	}
}

func TestSimpleLoggerDanglingKey(t *testing.T) {
	var buf bytes.Buffer
	l := &SimpleLogger{out: log.New(&buf, "", 0)}

	l.Warn("odd args", "key", "value", "dangling")

	line := buf.String()
	if !strings.Contains(line, "key=value") || !strings.Contains(line, "dangling") {
		t.Errorf("Odd argument count mishandled: %q", line)
	}
}
