//go:build !whisper

package transcribe

import (
	"fmt"
	"log/slog"
)

// NewWhisperEngine reports ErrModelMissing: this binary was built without
// the whisper tag, which needs libwhisper and its headers.
func NewWhisperEngine(cfg EngineConfig, _ *slog.Logger) (Engine, error) {
	return nil, fmt.Errorf("%w: built without whisper support (rebuild with -tags whisper)", ErrModelMissing)
}
