package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestAttemptFromHeaders(t *testing.T) {
	assert.Equal(t, 1, attemptFromHeaders(nil))
	assert.Equal(t, 1, attemptFromHeaders(amqp.Table{"other": "x"}))
	assert.Equal(t, 3, attemptFromHeaders(amqp.Table{"x-death": []interface{}{1, 2, 3}}))
}

func TestBackoff(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, base, backoff(base, 1))
	assert.Equal(t, 2*time.Second, backoff(base, 3))
	assert.Equal(t, 60*time.Second, backoff(base, 20))
}
