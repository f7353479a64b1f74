// Package hub fans gaze points, status updates and transcripts out to
// websocket clients using the channel-based broadcast pattern.
package hub

import "encoding/json"

// Message is one encoded JSON payload, shared by every client it is sent to.
type Message []byte

// Encode marshals v into a Message.
func Encode(v any) (Message, error) {
	return json.Marshal(v)
}
