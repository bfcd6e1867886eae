package metrics_test

import (
	"sync"
	"testing"

	"github.com/firasghr/GoPotluck/metrics"
)

func TestCountersStartAtZero(t *testing.T) {
	m := metrics.New()
	snap := m.Snapshot()
	if snap.CommandsProcessed != 0 || snap.EventsDelivered != 0 || snap.SessionsCreated != 0 {
		t.Errorf("fresh metrics not zeroed: %+v", snap)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := metrics.New()
	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.CommandsProcessed.Add(1)
				m.EventsDelivered.Add(1)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	want := uint64(goroutines * perGoroutine)
	if snap.CommandsProcessed != want {
		t.Errorf("CommandsProcessed = %d, want %d", snap.CommandsProcessed, want)
	}
	if snap.EventsDelivered != want {
		t.Errorf("EventsDelivered = %d, want %d", snap.EventsDelivered, want)
	}
}

func TestCommandRateInitiallyZero(t *testing.T) {
	m := metrics.New()
	m.CommandsProcessed.Add(1000)
	if rate := m.CommandRate(); rate != 0 {
		t.Errorf("CommandRate within first second = %f, want 0", rate)
	}
}
