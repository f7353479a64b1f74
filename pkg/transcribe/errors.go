package transcribe

import "errors"

// Sentinel errors for transcription.
var (
	// ErrQueueClosed is returned by Pop once the queue is closed and empty.
	ErrQueueClosed = errors.New("transcribe: queue closed")

	// ErrModelMissing is returned when a speech model or its credentials
	// cannot be found. Transcription is disabled; nothing else is affected.
	ErrModelMissing = errors.New("transcribe: speech model unavailable")

	// ErrUnknownEngine is returned by NewEngine for unrecognised names.
	ErrUnknownEngine = errors.New("transcribe: unknown engine")
)
