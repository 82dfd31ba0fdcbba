package events

import "github.com/arbor-coach/arbor/server/internal/model"

// Bus is a lightweight in-process pub-sub channel carrying notification
// payloads from the scheduler to whatever dispatch boundary is wired in
// (push gateway, email sender, or a test sink).
type Bus struct {
	ch chan model.NotificationPayload
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan model.NotificationPayload, buffer)}
}

// Publish attempts to enqueue the payload without blocking.
// Returns true if published, false if the buffer is full.
func (b *Bus) Publish(p model.NotificationPayload) bool {
	select {
	case b.ch <- p:
		return true
	default:
		return false
	}
}

// Subscribe returns a read-only channel for consumers.
func (b *Bus) Subscribe() <-chan model.NotificationPayload {
	return b.ch
}
