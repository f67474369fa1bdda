package transports

import (
	"context"
	"errors"
	"time"

	"github.com/rzbill/haywire/pkg/message"
)

// ErrNoMessage is returned by Receive when the wait ended without a message.
var ErrNoMessage = errors.New("no message")

// SendRequest describes one message to enqueue.
type SendRequest struct {
	Queue         string
	Body          []byte
	Headers       map[string]string
	CorrelationID string
}

// SendResult identifies the stored message.
type SendResult struct {
	ID       string `json:"id"`
	Sequence uint64 `json:"sequence"`
}

// BrowseRequest selects stored messages.
type BrowseRequest struct {
	Queue   string
	Filter  string
	FromSeq uint64
	Limit   int
}

// QueueStats mirrors the server's per-queue stats.
type QueueStats struct {
	Name         string `json:"name"`
	Stored       uint64 `json:"stored"`
	Pending      int    `json:"pending"`
	LastSequence uint64 `json:"lastSequence"`
	Delivered    uint64 `json:"delivered"`
}

// QueuesTransport abstracts the transport used by the CLI queue commands.
type QueuesTransport interface {
	Create(ctx context.Context, queue string) error
	List(ctx context.Context) ([]string, error)
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	Receive(ctx context.Context, queue string, timeout time.Duration) (*message.Message, error)
	Peek(ctx context.Context, queue string) (*message.Message, error)
	Browse(ctx context.Context, req BrowseRequest) ([]*message.Message, error)
	Stats(ctx context.Context, queue string) ([]QueueStats, error)
	Shutdown(ctx context.Context, queue string) error
}

// HealthTransport reports server health.
type HealthTransport interface {
	Check(ctx context.Context, service string) (string, error)
}
