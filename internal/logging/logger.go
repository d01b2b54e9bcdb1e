// Package logging builds the process-wide structured logger.
//
// Adapted from the teacher's internal/logger/logger.go: same level
// parsing and the same JSON-reformatting writer, which rewrites a JSON
// log line into a "[hh:mm:ss] [LEVEL] message k=v" line. The lines this
// package's own slog text handler writes are key=value text, not JSON,
// and pass through that writer unchanged. The teacher's TUI-handler plumbing
// (AddTUIHandler, MultiLevelHandler) is dropped: this process has no
// terminal UI to fan log lines out to.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	globalLevel  = slog.LevelInfo
	handlerMutex sync.RWMutex
)

// ParseLevel parses a level name into an slog.Level, defaulting to
// Info for anything unrecognized.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// jsonParsingWriter reformats JSON log lines (as sipgo's own slog
// logger emits) into a "[time] [LEVEL] message k=v..." line;
// anything that isn't JSON passes through unchanged.
type jsonParsingWriter struct {
	base io.Writer
}

func (w *jsonParsingWriter) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if !strings.HasPrefix(line, "{") {
		return w.base.Write(p)
	}

	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		return w.base.Write(p)
	}

	level := "info"
	if lv, ok := entry["level"]; ok {
		level = fmt.Sprint(lv)
	}

	message := "unknown"
	if msg, ok := entry["msg"]; ok {
		message = fmt.Sprint(msg)
	} else if msg, ok := entry["message"]; ok {
		message = fmt.Sprint(msg)
	}

	timestamp := time.Now().Format("15:04:05")
	if t, ok := entry["time"]; ok {
		if ts, err := time.Parse(time.RFC3339, fmt.Sprint(t)); err == nil {
			timestamp = ts.Format("15:04:05")
		}
	}

	var attrs []string
	for k, v := range entry {
		if k == "level" || k == "msg" || k == "message" || k == "time" {
			continue
		}
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, v))
	}

	formatted := fmt.Sprintf("[%s] [%s] %s", timestamp, strings.ToUpper(level), message)
	if len(attrs) > 0 {
		formatted += " " + strings.Join(attrs, " ")
	}
	formatted += "\n"

	return w.base.Write([]byte(formatted))
}

// New builds the process logger at the given level, writing to out
// through the JSON-reformatting writer.
func New(level string, out io.Writer) *slog.Logger {
	handlerMutex.Lock()
	globalLevel = ParseLevel(level)
	handlerMutex.Unlock()

	handler := slog.NewTextHandler(&jsonParsingWriter{base: out}, &slog.HandlerOptions{
		Level: &levelVar{},
	})
	return slog.New(handler)
}

// levelVar implements slog.Leveler over the package's own level
// setting so the handler's filtering stays in sync with ParseLevel.
type levelVar struct{}

func (levelVar) Level() slog.Level {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return globalLevel
}
