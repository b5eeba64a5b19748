package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(time.Second, func() { fired++ })

	c.Advance(999 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired early: %d", fired)
	}
	c.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("one-shot fired again: %d", fired)
	}
}

func TestFakeClock_StopPreventsFire(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop() on pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop() returned true")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if c.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d, want 0", c.PendingCount())
	}
}

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}
}

func TestFakeClock_Ticker(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	c.Advance(100 * time.Millisecond)
	select {
	case got := <-ticker.C:
		if !got.Equal(epoch.Add(100 * time.Millisecond)) {
			t.Errorf("tick time = %v", got)
		}
	default:
		t.Fatal("no tick after one interval")
	}

	ticker.Stop()
	c.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Fatal("tick after Stop")
	default:
	}
}

func TestFakeClock_WaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		c.AfterFunc(time.Second, func() { close(done) })
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
	}
}
