package quota

import (
	"testing"
	"time"
)

func TestCanMakeRequestUnderLimit(t *testing.T) {
	c := New(Limits{Daily: 50, Hourly: 10})
	if !c.CanMakeRequest(PriorityNormal) {
		t.Error("expected fresh counters to permit a normal-priority request")
	}
}

func TestCanMakeRequestDeniesAtHourlyLimit(t *testing.T) {
	c := New(Limits{Daily: 50, Hourly: 2})
	c.RecordSuccess()
	c.RecordSuccess()
	if c.CanMakeRequest(PriorityNormal) {
		t.Error("expected hourly limit to deny further requests")
	}
}

func TestCanMakeRequestDeniesAtDailyLimit(t *testing.T) {
	c := New(Limits{Daily: 2, Hourly: 100})
	c.RecordSuccess()
	c.RecordSuccess()
	if c.CanMakeRequest(PriorityNormal) {
		t.Error("expected daily limit to deny further requests")
	}
}

func TestLowPrioritySoftDenyAbove80Percent(t *testing.T) {
	c := New(Limits{Daily: 10, Hourly: 100})
	for i := 0; i < 8; i++ {
		c.RecordSuccess()
	}
	if c.CanMakeRequest(PriorityLow) {
		t.Error("expected low-priority request to be denied above 80% daily usage")
	}
	if !c.CanMakeRequest(PriorityNormal) {
		t.Error("expected normal-priority request to still be permitted below the hard daily limit")
	}
}

func TestFailedCallsConsumeQuota(t *testing.T) {
	c := New(Limits{Daily: 1, Hourly: 100})
	c.RecordFailure()
	if c.CanMakeRequest(PriorityNormal) {
		t.Error("expected a failed call to consume daily quota same as a success")
	}
}

func TestWindowResetsAfterElapse(t *testing.T) {
	c := New(Limits{Daily: 50, Hourly: 1})
	start := time.Now()
	c.now = func() time.Time { return start }
	c.RecordSuccess()
	if c.CanMakeRequest(PriorityNormal) {
		t.Fatal("expected hourly limit of 1 to deny a second request within the window")
	}

	c.now = func() time.Time { return start.Add(time.Hour + time.Minute) }
	if !c.CanMakeRequest(PriorityNormal) {
		t.Error("expected hourly window to reset after elapsing")
	}
}
