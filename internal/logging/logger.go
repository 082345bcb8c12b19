// Package logging provides leveled, structured logging for forge. It wraps
// the standard log package and attaches key-value context fields to every
// line, so task runs can be traced by feature identity.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Level represents a log severity.
type Level int

const (
	// LevelDebug is verbose diagnostic output.
	LevelDebug Level = iota
	// LevelInfo is general progress information.
	LevelInfo
	// LevelWarn is for recoverable problems.
	LevelWarn
	// LevelError is for failures that end an operation.
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ParseLevel converts a config string into a Level. Unknown values
// fall back to warn.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "error":
		return LevelError
	default:
		return LevelWarn
	}
}

// Logger writes leveled log lines with attached context fields.
type Logger struct {
	mu       sync.RWMutex
	minLevel Level
	fields   []field
	out      *log.Logger
	disabled bool
}

type field struct {
	key   string
	value any
}

// New creates a Logger writing to w at the given minimum level.
func New(w io.Writer, minLevel Level) *Logger {
	return &Logger{
		minLevel: minLevel,
		out:      log.New(w, "", log.LstdFlags),
	}
}

// Nop returns a logger that discards everything. Useful as a default
// for components that accept an optional logger.
func Nop() *Logger {
	return &Logger{disabled: true}
}

// With returns a child logger with an extra context field.
func (l *Logger) With(key string, value any) *Logger {
	if l == nil {
		return Nop()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	child := &Logger{
		minLevel: l.minLevel,
		out:      l.out,
		disabled: l.disabled,
		fields:   make([]field, 0, len(l.fields)+1),
	}
	child.fields = append(child.fields, l.fields...)
	child.fields = append(child.fields, field{key, value})
	return child
}

func (l *Logger) log(level Level, msg string, keyVals ...any) {
	if l == nil || l.disabled {
		return
	}

	l.mu.RLock()
	minLevel := l.minLevel
	out := l.out
	fields := l.fields
	l.mu.RUnlock()

	if level < minLevel || out == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(levelNames[level])
	sb.WriteString(": ")
	sb.WriteString(msg)

	for _, f := range fields {
		writeField(&sb, f.key, f.value)
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		key, ok := keyVals[i].(string)
		if !ok {
			continue
		}
		writeField(&sb, key, keyVals[i+1])
	}

	out.Print(sb.String())
}

func writeField(sb *strings.Builder, key string, value any) {
	sb.WriteString(" ")
	sb.WriteString(key)
	sb.WriteString("=")
	switch v := value.(type) {
	case string:
		if strings.ContainsAny(v, " \t\n") {
			fmt.Fprintf(sb, "%q", v)
		} else {
			sb.WriteString(v)
		}
	case error:
		fmt.Fprintf(sb, "%q", v.Error())
	default:
		fmt.Fprint(sb, v)
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keyVals ...any) { l.log(LevelDebug, msg, keyVals...) }

// Info logs at info level.
func (l *Logger) Info(msg string, keyVals ...any) { l.log(LevelInfo, msg, keyVals...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keyVals ...any) { l.log(LevelWarn, msg, keyVals...) }

// Error logs at error level.
func (l *Logger) Error(msg string, keyVals ...any) { l.log(LevelError, msg, keyVals...) }
