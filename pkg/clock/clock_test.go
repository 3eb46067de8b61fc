package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceWakesWaiters(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := NewFake(start)

	ch := fc.After(10 * time.Second)

	select {
	case <-ch:
		t.Fatal("waiter fired before advance")
	default:
	}

	fc.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("waiter fired before deadline")
	default:
	}

	fc.Advance(5 * time.Second)
	select {
	case got := <-ch:
		if !got.Equal(start.Add(10 * time.Second)) {
			t.Errorf("expected deadline time, got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never fired")
	}
}

func TestFake_NonPositiveAfterFiresImmediately(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))
	select {
	case <-fc.After(0):
	case <-time.After(time.Second):
		t.Fatal("zero-duration After did not fire")
	}
}

func TestFake_Now(t *testing.T) {
	start := time.Unix(100, 0)
	fc := NewFake(start)
	fc.Advance(30 * time.Second)
	if got := fc.Now(); !got.Equal(start.Add(30 * time.Second)) {
		t.Errorf("expected %v, got %v", start.Add(30*time.Second), got)
	}
	if got := fc.Since(start); got != 30*time.Second {
		t.Errorf("expected 30s since start, got %v", got)
	}
}

func TestReal_Now(t *testing.T) {
	c := Real()
	before := time.Now()
	got := c.Now()
	if got.Before(before.Add(-time.Second)) || got.After(before.Add(time.Second)) {
		t.Errorf("real clock drifted: %v vs %v", got, before)
	}
}
