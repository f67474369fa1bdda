// Package channel defines local delivery of messages to addressed queues.
package channel

import (
	"errors"
	"time"

	"github.com/rzbill/haywire/pkg/message"
)

var (
	ErrAddressNotFound = errors.New("channel address not found")
	ErrAddressExists   = errors.New("channel address already open")
	ErrInvalidAddress  = errors.New("invalid channel address")
	ErrClosed          = errors.New("channel closed")
	// ErrShutdown is the failure handed to receivers stranded by Shutdown.
	ErrShutdown = errors.New("channel address shutting down")
)

// ReceiveResult is the outcome of an asynchronous receive. A nil Message
// with a nil Err means the address was closed or drained after shutdown.
type ReceiveResult struct {
	Message *message.Message
	Err     error
}

// Channel delivers messages to whatever consumer waits on an address.
type Channel interface {
	Open(address string) error
	// Send hands msg to the address. An address that was shut down refuses
	// the message with ErrShutdown; an accepted message is never dropped.
	Send(address string, msg *message.Message) error
	// SendDeferred is Send that never runs receiver code on the caller's
	// goroutine; blocked receivers are completed through the scheduler.
	SendDeferred(address string, msg *message.Message) error
	Receive(address string, timeout time.Duration) (*message.Message, error)
	// BeginReceive starts a receive; done runs exactly once with the outcome.
	BeginReceive(address string, timeout time.Duration, done func(ReceiveResult)) error
	WaitForMessage(address string, timeout time.Duration) (bool, error)
	Pending(address string) (int, error)
	Shutdown(address string) error
	CloseAddress(address string) error
	Close() error
}
