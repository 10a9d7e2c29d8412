package fetchkit

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger is the minimal structured logging interface the library emits to.
// Keys and values alternate, as in Debug("cache hit", "key", key).
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SimpleLogger writes leveled key=value lines to stderr via the standard
// library logger. Intended for development; production callers plug in
// their own Logger.
type SimpleLogger struct {
	out *log.Logger
}

// NewSimpleLogger creates a SimpleLogger writing to stderr.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		out: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.write("DEBUG", msg, keysAndValues)
}

func (l *SimpleLogger) Info(msg string, keysAndValues ...interface{}) {
	l.write("INFO", msg, keysAndValues)
}

func (l *SimpleLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.write("WARN", msg, keysAndValues)
}

func (l *SimpleLogger) Error(msg string, keysAndValues ...interface{}) {
	l.write("ERROR", msg, keysAndValues)
}

func (l *SimpleLogger) write(level, msg string, keysAndValues []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	if len(keysAndValues)%2 != 0 {
		fmt.Fprintf(&b, " %v", keysAndValues[len(keysAndValues)-1])
	}

	l.out.Println(b.String())
}
