package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Push("1.1.1.1", nil, nil))
	assert.True(t, q.Push("2.2.2.2", nil, nil))
	assert.True(t, q.Push("3.3.3.3", nil, nil))
	assert.Equal(t, 3, q.Len())

	polled := q.Poll(2)
	require.Len(t, polled, 2)
	assert.Equal(t, "1.1.1.1", polled[0].ip)
	assert.Equal(t, "2.2.2.2", polled[1].ip)

	polled = q.Poll(5)
	require.Len(t, polled, 1)
	assert.Equal(t, "3.3.3.3", polled[0].ip)
	assert.Zero(t, q.Len())
}

func TestQueueReplaceKeepsPosition(t *testing.T) {
	q := NewQueue()
	var oldRejected, newAdmitted bool
	q.Push("1.1.1.1", nil, func() { oldRejected = true })
	q.Push("2.2.2.2", nil, nil)

	// Re-submitting replaces the actions, rejects the stale
	// connection and keeps the original queue position.
	assert.False(t, q.Push("1.1.1.1", func() { newAdmitted = true }, nil))
	assert.True(t, oldRejected)
	assert.Equal(t, 2, q.Len())

	polled := q.Poll(1)
	require.Len(t, polled, 1)
	assert.Equal(t, "1.1.1.1", polled[0].ip)
	polled[0].admit()
	assert.True(t, newAdmitted)
}

func TestQueueRemove(t *testing.T) {
	q := NewQueue()
	q.Push("1.1.1.1", nil, nil)
	q.Push("2.2.2.2", nil, nil)
	q.Remove("1.1.1.1")
	assert.Equal(t, 1, q.Len())

	polled := q.Poll(2)
	require.Len(t, polled, 1)
	assert.Equal(t, "2.2.2.2", polled[0].ip)
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue()
	q.Push("1.1.1.1", nil, nil)
	q.Push("2.2.2.2", nil, nil)
	all := q.Drain()
	require.Len(t, all, 2)
	assert.Equal(t, "1.1.1.1", all[0].ip)
	assert.Zero(t, q.Len())
}
