package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQueueName(t *testing.T) {
	for _, ok := range []string{"orders", "orders.v2", "a-b_c", "Q"} {
		assert.NoError(t, ValidateQueueName(ok), ok)
	}
	for _, bad := range []string{"", "   ", "has space", "slash/name"} {
		assert.ErrorIs(t, ValidateQueueName(bad), ErrInvalidQueueName, bad)
	}
}

func TestCustomPatternIsAnchored(t *testing.T) {
	v, err := NewNameValidator("[a-z]+")
	require.NoError(t, err)
	assert.NoError(t, v.Validate("orders"))
	assert.ErrorIs(t, v.Validate("orders1"), ErrInvalidQueueName)

	_, err = NewNameValidator("[")
	assert.Error(t, err)
}
