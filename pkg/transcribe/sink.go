package transcribe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/pkg/hub"
)

// Transcript is one accepted transcription.
type Transcript struct {
	Session    string        `json:"session"`
	Seq        int           `json:"seq"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence,omitempty"`
	HasConf    bool          `json:"-"`
	At         time.Time     `json:"at"`
	Offset     time.Duration `json:"offset_ns"` // Position in the input, file mode only
	Audio      time.Duration `json:"audio_ns"`
	Processing time.Duration `json:"processing_ns"`
	Engine     string        `json:"engine"`
}

// RTF is the real-time factor: processing time over audio duration.
func (t Transcript) RTF() float64 {
	if t.Audio <= 0 {
		return 0
	}
	return t.Processing.Seconds() / t.Audio.Seconds()
}

// Sink consumes transcripts.
type Sink interface {
	Write(t Transcript) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Transcript) error

// Write implements Sink.
func (f SinkFunc) Write(t Transcript) error { return f(t) }

// Multi writes to every sink and joins their errors.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(t Transcript) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FormatLine renders t in the log file format:
//
//	[HH:MM:SS.mmm] TRANSCRIPTION: text (conf: 0.812) (0.42s) (RTF: 0.11x)
func FormatLine(t Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] TRANSCRIPTION: %s", t.At.Format("15:04:05.000"), t.Text)
	if t.HasConf {
		fmt.Fprintf(&b, " (conf: %.3f)", t.Confidence)
	}
	if t.Processing > 0 {
		fmt.Fprintf(&b, " (%.2fs)", t.Processing.Seconds())
		fmt.Fprintf(&b, " (RTF: %.2fx)", t.RTF())
	}
	return b.String()
}

// FormatHeader renders the first line of a log file.
func FormatHeader(engine string, started time.Time) string {
	return fmt.Sprintf("=== REAL-TIME %s Transcription Log Started: %s ===", engineTitle(engine), started.Format("2006-01-02 15:04:05"))
}

func engineTitle(name string) string {
	switch name {
	case "":
		return "Speech"
	case "google":
		return "Google Speech"
	default:
		return strings.ToUpper(name[:1]) + name[1:]
	}
}

// LogFile appends transcripts to a text file. Each line is flushed as it
// is written.
type LogFile struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

// CreateLogFile truncates path and writes the header followed by a blank
// line.
func CreateLogFile(path, engine string, started time.Time) (*LogFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create transcription log: %w", err)
	}
	l := &LogFile{f: f, w: bufio.NewWriter(f), path: path}
	if _, err := fmt.Fprintf(l.w, "%s\n\n", FormatHeader(engine, started)); err != nil {
		f.Close()
		return nil, err
	}
	if err := l.w.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the file path.
func (l *LogFile) Path() string { return l.path }

// Write implements Sink.
func (l *LogFile) Write(t Transcript) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.WriteString(FormatLine(t) + "\n"); err != nil {
		return fmt.Errorf("write transcription log: %w", err)
	}
	return l.w.Flush()
}

// Close flushes and closes the file.
func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// Console prints a one-line summary per transcript, prefixed with a speed
// marker: ⚡ under 0.5x real time, 🚀 under 1x, 🎯 otherwise.
type Console struct {
	mu sync.Mutex
	W  io.Writer
}

// Write implements Sink.
func (c *Console) Write(t Transcript) error {
	var b strings.Builder
	rtf := t.RTF()
	marker := "🎯"
	switch {
	case t.Processing > 0 && rtf < 0.5:
		marker = "⚡"
	case t.Processing > 0 && rtf < 1:
		marker = "🚀"
	}
	fmt.Fprintf(&b, "%s [%s] %s", marker, t.At.Format("15:04:05.000"), t.Text)
	if t.HasConf {
		fmt.Fprintf(&b, " (%.3f)", t.Confidence)
	}
	if t.Processing > 0 {
		fmt.Fprintf(&b, " (%.2fs) (%.2fx)", t.Processing.Seconds(), rtf)
	}
	b.WriteByte('\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.W, b.String())
	return err
}

// HubSink broadcasts transcripts to websocket clients.
type HubSink struct {
	Hub *hub.Hub
}

// Write implements Sink.
func (s HubSink) Write(t Transcript) error {
	if s.Hub == nil || s.Hub.ClientCount() == 0 {
		return nil
	}
	return s.Hub.BroadcastJSON(t)
}
