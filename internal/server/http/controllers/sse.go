package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/haywire/pkg/message"
)

// sseSink writes messages as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
}

// Send writes m as one "data:" event.
func (s sseSink) Send(m *message.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	s.Flush()
	return nil
}

// Event writes a named event with a plain-text payload.
func (s sseSink) Event(name, data string) {
	_, _ = s.w.Write([]byte("event: " + name + "\ndata: " + data + "\n\n"))
	s.Flush()
}

// Flush flushes the HTTP response writer if it supports flushing.
func (s sseSink) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
