package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxSettlesByRoomAndText(t *testing.T) {
	var o Outbox
	now := time.Now()
	o.Add("r1", "same", now)

	assert.False(t, o.Settle("r2", "same"))
	assert.False(t, o.Settle("r1", "different"))
	// an echo of identical text from another connection cannot be told apart
	assert.True(t, o.Settle("r1", "same"))
	assert.Empty(t, o.List("r1"))
}

func TestOutboxLifecycle(t *testing.T) {
	var o Outbox
	now := time.Now()

	first := o.Add("r1", "hello", now)
	second := o.Add("r1", "hello", now)
	o.Add("r2", "other", now)

	assert.True(t, strings.HasPrefix(first.LocalID, "local-"))
	assert.NotEqual(t, first.LocalID, second.LocalID)
	require.Len(t, o.List("r1"), 2)

	assert.True(t, o.Fail("r1", "hello"))
	list := o.List("r1")
	assert.True(t, list[0].Failed)
	assert.False(t, list[1].Failed)

	assert.True(t, o.Settle("r1", "hello"))
	list = o.List("r1")
	require.Len(t, list, 1)
	assert.Equal(t, second.LocalID, list[0].LocalID)

	assert.True(t, o.Fail("r1", "hello"))
	p, ok := o.Retry(second.LocalID)
	assert.True(t, ok)
	assert.False(t, p.Failed)
	_, ok = o.Retry(second.LocalID)
	assert.False(t, ok, "only failed entries can be retried")

	assert.True(t, o.Dismiss(second.LocalID))
	assert.Empty(t, o.List("r1"))
	assert.False(t, o.Settle("r1", "hello"))
}
