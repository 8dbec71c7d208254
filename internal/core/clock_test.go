package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonotonicClock_StrictlyIncreasing(t *testing.T) {
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.FixedZone("IST", 5*3600+1800))
	c := &MonotonicClock{now: func() time.Time { return frozen }}

	first := c.Now()
	assert.Equal(t, time.UTC, first.Location())
	assert.Equal(t, 0, first.Nanosecond()%1000, "microsecond resolution")

	prev := first
	for i := 0; i < 100; i++ {
		next := c.Now()
		assert.True(t, next.After(prev))
		prev = next
	}
}

func TestMonotonicClock_ObserveMovesPastStoredEvents(t *testing.T) {
	c := &MonotonicClock{now: func() time.Time { return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) }}
	stored := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Observe(stored)
	assert.True(t, c.Now().After(stored))
}

func TestIDFormats(t *testing.T) {
	at := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	assert.Regexp(t, `^BATCH_20250203_[0-9A-F]{8}$`, newBatchID(at))
	assert.Regexp(t, `^BATCH_X_DIV3_[0-9A-F]{4}$`, newChildBatchID("BATCH_X", 3))
	assert.Regexp(t, `^PKG_20250203_[0-9A-F]{8}$`, newPackageID(at))
	assert.Regexp(t, `^TXN_20250203_[0-9A-F]{8}$`, newTransactionID(at))
	assert.Regexp(t, `^EVT_[0-9a-f-]{36}$`, newEventID())
}
