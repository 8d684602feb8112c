package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcessWithinTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := New(2*time.Minute, 10)
	d.now = func() time.Time { return now }

	assert.True(t, d.ShouldProcess("cmd-1"))
	assert.False(t, d.ShouldProcess("cmd-1"))

	now = now.Add(3 * time.Minute)
	assert.True(t, d.ShouldProcess("cmd-1"))
}

func TestEmptyIDAlwaysProcessed(t *testing.T) {
	d := New(time.Minute, 10)
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))
	assert.Equal(t, 0, d.Len())
}

func TestCapEvictsOldest(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := New(time.Hour, 2)
	d.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, d.ShouldProcess(id))
		now = now.Add(time.Second)
	}
	assert.Equal(t, 2, d.Len())
	assert.True(t, d.ShouldProcess("a"), "oldest entry must have been evicted")
}

func TestDefaults(t *testing.T) {
	d := New(0, 0)
	assert.Equal(t, 10*time.Minute, d.ttl)
	assert.Equal(t, 10000, d.max)
}
