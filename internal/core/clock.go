package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MonotonicClock returns strictly increasing UTC timestamps at microsecond
// resolution, the finest precision Postgres timestamptz keeps. Strict
// ordering makes every lineage edge point forward in time.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewMonotonicClock returns a clock backed by time.Now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

// Now implements Clock.
func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Observe advances the clock past t. Called after replay so new events sort
// after every stored one even if the wall clock went backwards.
func (c *MonotonicClock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.last) {
		c.last = t.UTC()
	}
}

func shortID(n int) string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:n])
}

func newBatchID(at time.Time) string {
	return fmt.Sprintf("BATCH_%s_%s", at.Format("20060102"), shortID(8))
}

func newChildBatchID(parentID string, n int) string {
	return fmt.Sprintf("%s_DIV%d_%s", parentID, n, shortID(4))
}

func newPackageID(at time.Time) string {
	return fmt.Sprintf("PKG_%s_%s", at.Format("20060102"), shortID(8))
}

func newTransactionID(at time.Time) string {
	return fmt.Sprintf("TXN_%s_%s", at.Format("20060102"), shortID(8))
}

func newDivisionID(at time.Time) string {
	return fmt.Sprintf("DIV_%s_%s", at.Format("20060102"), shortID(8))
}

func newEventID() string {
	return "EVT_" + uuid.NewString()
}
