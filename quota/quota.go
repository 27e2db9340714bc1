// Package quota tracks the Planner's daily and hourly LLM call budgets so
// enhanced synthesis degrades to basic synthesis under load instead of
// failing outright.
package quota

import (
	"sync"
	"time"
)

// Priority distinguishes requests that may be shed earlier as usage climbs.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// lowPrioritySoftDenyThreshold is the fraction of the daily quota above
// which low-priority requests are additionally denied (§5 Quota management).
const lowPrioritySoftDenyThreshold = 0.8

// Limits holds the two rolling-window ceilings.
type Limits struct {
	Daily  int
	Hourly int
}

// Counters is the quota interface; the default implementation is
// process-local. A distributed counter (e.g. backed by a shared KV store)
// can satisfy the same interface for multi-replica Planners (§9).
type Counters interface {
	// CanMakeRequest reports whether a call of the given priority is
	// currently permitted under both windows.
	CanMakeRequest(priority Priority) bool
	// RecordSuccess records a completed call against both windows.
	RecordSuccess()
	// RecordFailure records a failed call against both windows — failed
	// calls still consume quota.
	RecordFailure()
}

// InMemoryCounters is the default process-local Counters implementation,
// with daily and hourly rolling windows that reset on elapse.
type InMemoryCounters struct {
	mu     sync.Mutex
	limits Limits
	now    func() time.Time

	dailyCount  int
	dailyStart  time.Time
	hourlyCount int
	hourlyStart time.Time
}

// New creates counters with the given limits, windows starting now.
func New(limits Limits) *InMemoryCounters {
	now := time.Now()
	return &InMemoryCounters{
		limits:      limits,
		now:         time.Now,
		dailyStart:  now,
		hourlyStart: now,
	}
}

// CanMakeRequest implements Counters.
func (c *InMemoryCounters) CanMakeRequest(priority Priority) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetIfElapsed()

	if c.limits.Daily > 0 && c.dailyCount >= c.limits.Daily {
		return false
	}
	if c.limits.Hourly > 0 && c.hourlyCount >= c.limits.Hourly {
		return false
	}
	if priority == PriorityLow && c.limits.Daily > 0 {
		if float64(c.dailyCount) >= lowPrioritySoftDenyThreshold*float64(c.limits.Daily) {
			return false
		}
	}
	return true
}

// RecordSuccess implements Counters.
func (c *InMemoryCounters) RecordSuccess() { c.record() }

// RecordFailure implements Counters.
func (c *InMemoryCounters) RecordFailure() { c.record() }

func (c *InMemoryCounters) record() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetIfElapsed()
	c.dailyCount++
	c.hourlyCount++
}

func (c *InMemoryCounters) resetIfElapsed() {
	now := c.now()
	if now.Sub(c.dailyStart) >= 24*time.Hour {
		c.dailyCount = 0
		c.dailyStart = now
	}
	if now.Sub(c.hourlyStart) >= time.Hour {
		c.hourlyCount = 0
		c.hourlyStart = now
	}
}
