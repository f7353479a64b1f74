package emit

import "github.com/teslashibe/go-gaze/pkg/hub"

// HubSink broadcasts records to websocket clients. It never blocks; the
// hub drops messages for clients that fall behind.
type HubSink struct {
	Hub *hub.Hub
}

// Emit implements Sink.
func (s HubSink) Emit(r Record) error {
	if s.Hub.ClientCount() == 0 {
		return nil
	}
	return s.Hub.BroadcastJSON(r)
}
