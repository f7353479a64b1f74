// Package log sets up the process logger.
//
// Logs always go to stderr: stdout carries the NDJSON gaze stream that the
// host application parses line by line.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	global   *slog.Logger
	initOnce sync.Once
)

// ParseLevel maps a level name to a slog level. Anything unrecognised is
// info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	switch s := strings.ToLower(strings.TrimSpace(name)); s {
	case "warning":
		lvl = slog.LevelWarn
	default:
		if lvl.UnmarshalText([]byte(s)) != nil {
			lvl = slog.LevelInfo
		}
	}
	return lvl
}

// New returns a logger writing text, or JSON when asJSON is set, to w.
func New(w io.Writer, level string, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if asJSON {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// Init installs the process logger on stderr and makes it the slog
// default. JSON is used when GO_ENV=production. Later calls are ignored.
func Init(level string) {
	initOnce.Do(func() {
		global = New(os.Stderr, level, os.Getenv("GO_ENV") == "production")
		slog.SetDefault(global)
	})
}

// L returns the process logger, installing it at info level if Init was
// never called.
func L() *slog.Logger {
	Init("info")
	return global
}

// Or returns l, or the process logger when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return L()
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
