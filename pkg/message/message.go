// Package message defines the unit stored and delivered by haywire queues.
package message

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Message is an opaque body plus routing metadata. Sequence is assigned by
// the store when the message is first persisted to a queue.
type Message struct {
	ID            string            `json:"id"`
	Sequence      uint64            `json:"sequence"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          []byte            `json:"body,omitempty"`
	EnqueuedAt    time.Time         `json:"enqueuedAt"`
}

// New returns a message with a fresh random ID.
func New(body []byte) *Message {
	return &Message{ID: uuid.NewString(), Body: body}
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Headers = maps.Clone(m.Headers)
	if m.Body != nil {
		c.Body = append([]byte(nil), m.Body...)
	}
	return &c
}
