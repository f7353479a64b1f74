package emit

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/hub"
)

func TestNewRecord(t *testing.T) {
	p := gaze.Point{X: 12.5, Y: 40, Confidence: 0.9, Timestamp: time.Unix(1700000000, 500_000_000)}
	r := NewRecord(p, true)
	if r.X != 12.5 || r.Y != 40 || r.Confidence != 0.9 || !r.Calibrated || r.Demo {
		t.Errorf("unexpected record %+v", r)
	}
	if r.Timestamp != 1700000000.5 {
		t.Errorf("Timestamp = %v, want 1700000000.5", r.Timestamp)
	}
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLines(&buf)

	if err := s.Emit(Record{X: 1, Y: 2, Confidence: 0.9, Timestamp: 3}); err != nil {
		t.Fatal(err)
	}
	if err := s.Emit(Record{X: 4, Y: 5, Confidence: 0.85, Timestamp: 6, Demo: true}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	want := `{"x":1,"y":2,"confidence":0.9,"timestamp":3,"calibrated":false}`
	if lines[0] != want {
		t.Errorf("line 0 = %s, want %s", lines[0], want)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &fields); err != nil {
		t.Fatal(err)
	}
	if fields["demo"] != true {
		t.Errorf("synthetic record must carry demo marker: %s", lines[1])
	}
}

type recordingMover struct {
	moves [][2]int
}

func (m *recordingMover) MoveTo(x, y int) { m.moves = append(m.moves, [2]int{x, y}) }

func TestFollowerSkipsSmallSteps(t *testing.T) {
	m := &recordingMover{}
	f := NewFollower(m, 3)

	f.Emit(Record{X: 100.4, Y: 100.6})
	f.Emit(Record{X: 101, Y: 101})
	f.Emit(Record{X: 110, Y: 100})

	if len(m.moves) != 2 {
		t.Fatalf("moves = %v, want 2 moves", m.moves)
	}
	if m.moves[0] != [2]int{100, 101} || m.moves[1] != [2]int{110, 100} {
		t.Errorf("moves = %v", m.moves)
	}
}

func TestMulti(t *testing.T) {
	var got []float64
	ok := SinkFunc(func(r Record) error { got = append(got, r.X); return nil })
	boom := errors.New("boom")
	bad := SinkFunc(func(Record) error { return boom })

	err := Multi{ok, bad, ok}.Emit(Record{X: 7})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(got) != 2 {
		t.Errorf("every sink should be tried, got %v", got)
	}
}

func TestHubSinkWithoutClients(t *testing.T) {
	s := HubSink{Hub: hub.New("gaze", log.Discard())}
	if err := s.Emit(Record{X: 1, Y: 2}); err != nil {
		t.Errorf("Emit = %v", err)
	}
	if s.Hub.Dropped() != 0 {
		t.Error("record queued with no clients")
	}
}
