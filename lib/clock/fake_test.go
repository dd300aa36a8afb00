// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(epoch)
	done := fake.After(5 * time.Second)

	select {
	case <-done:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(4 * time.Second)
	select {
	case <-done:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case at := <-done:
		if !at.Equal(epoch.Add(5 * time.Second)) {
			t.Errorf("fire time = %v, want %v", at, epoch.Add(5*time.Second))
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	fired := false
	timer := fake.AfterFunc(3*time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop on a pending timer returned false")
	}
	fake.Advance(10 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop returned true")
	}
}

func TestFakeAfterFuncReset(t *testing.T) {
	fake := Fake(epoch)
	var fires int
	timer := fake.AfterFunc(3*time.Second, func() { fires++ })

	// Push the deadline out; the original deadline must not fire.
	fake.Advance(2 * time.Second)
	if !timer.Reset(3 * time.Second) {
		t.Error("Reset on an active timer returned false")
	}
	fake.Advance(2 * time.Second)
	if fires != 0 {
		t.Fatalf("timer fired %d times before the reset deadline", fires)
	}
	fake.Advance(time.Second)
	if fires != 1 {
		t.Fatalf("fires = %d after reset deadline, want 1", fires)
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// Capacity is 1: a multi-interval advance coalesces into however
	// many ticks the consumer drains, never blocking Advance.
	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after one interval")
	}

	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after the second interval")
	}
}

func TestFakeTickerStop(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()
	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Error("stopped ticker delivered a tick")
	default:
	}
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after Stop, want 0", fake.PendingCount())
	}
}

func TestFakeAfterFuncImmediate(t *testing.T) {
	fake := Fake(epoch)
	fired := false
	fake.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Error("zero-duration AfterFunc did not run synchronously")
	}
}

func TestWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	go fake.After(time.Second)
	fake.WaitForTimers(1)
	if fake.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", fake.PendingCount())
	}
}
