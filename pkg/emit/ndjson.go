package emit

import (
	"encoding/json"
	"io"
	"sync"
)

// JSONLines writes one JSON object per line. Hosts read this from the
// process's stdout, so nothing else may be written to w.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines returns a sink writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Emit implements Sink.
func (j *JSONLines) Emit(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(r)
}
