package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rzbill/haywire/pkg/message"
)

var (
	// ErrInvalidQueueName is an argument error: the name is blank or fails
	// the store's naming rule.
	ErrInvalidQueueName = errors.New("invalid queue name")
	ErrQueueNotFound    = errors.New("queue not found")
	ErrQueueExists      = errors.New("queue already exists")
	ErrMessageNotFound  = errors.New("message not found")
	ErrClosed           = errors.New("store closed")
)

// DefaultQueueNamePattern is applied when no pattern is configured.
const DefaultQueueNamePattern = `[A-Za-z0-9._-]{1,128}`

// Store persists queues and their messages.
//
// NextSequence must hand out strictly increasing numbers per queue, starting
// at 1, atomically with respect to concurrent callers.
type Store interface {
	CreateQueue(name string) (bool, error)
	QueueExists(name string) (bool, error)
	Queues() ([]string, error)
	NextSequence(name string) (uint64, error)
	// LastSequence returns the most recently allocated sequence, 0 if none.
	LastSequence(name string) (uint64, error)
	MessageCount(name string) (uint64, error)
	Message(name string, seq uint64) (*message.Message, error)
	// StoreMessage persists msg under queue name. A zero msg.Sequence is
	// replaced by NextSequence(name).
	StoreMessage(ctx context.Context, name string, msg *message.Message) error
	Close() error
}

// NameValidator checks queue names against an anchored pattern.
type NameValidator struct {
	re *regexp.Regexp
}

// NewNameValidator compiles pattern, anchoring it at both ends. An empty
// pattern uses DefaultQueueNamePattern.
func NewNameValidator(pattern string) (*NameValidator, error) {
	if pattern == "" {
		pattern = DefaultQueueNamePattern
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("compile queue name pattern: %w", err)
	}
	return &NameValidator{re: re}, nil
}

// Validate returns ErrInvalidQueueName for blank or non-matching names.
func (v *NameValidator) Validate(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is blank", ErrInvalidQueueName)
	}
	if v != nil && !v.re.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidQueueName, name)
	}
	return nil
}

var defaultValidator, _ = NewNameValidator("")

// ValidateQueueName applies the default naming rule.
func ValidateQueueName(name string) error {
	return defaultValidator.Validate(name)
}
