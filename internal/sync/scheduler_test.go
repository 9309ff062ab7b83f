package sync

import (
	gosync "sync"
	"testing"
	"time"

	"github.com/beizuri/posedge/internal/config"
	"github.com/beizuri/posedge/internal/server"
)

func testSyncConfig(enabled bool) config.SyncConfig {
	return config.SyncConfig{
		ServerURL: "http://sync.test",
		APIToken:  "token",
		StoreID:   "store-1",
		Enabled:   enabled,
		Interval:  time.Hour, // the loop must never fire on its own mid-test
	}
}

func TestSchedulerDisabledDoesNotStart(t *testing.T) {
	api := &stubAPI{healthy: false}
	o, _ := newTestOrchestrator(t, api)
	s := NewScheduler(o, testSyncConfig(false))

	s.Start()
	if s.Running() {
		t.Error("disabled scheduler reports running")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	api := &stubAPI{healthy: false}
	o, _ := newTestOrchestrator(t, api)
	s := NewScheduler(o, testSyncConfig(true))

	s.Start()
	if !s.Running() {
		t.Fatal("scheduler did not start")
	}

	// Starting twice is a no-op
	s.Start()
	if !s.Running() {
		t.Fatal("second Start broke the scheduler")
	}

	s.Stop()
	if s.Running() {
		t.Error("scheduler still running after Stop")
	}

	// Stopping twice must not panic on the closed channel
	s.Stop()
}

func TestSyncNowWorksWithoutStart(t *testing.T) {
	api := &stubAPI{
		healthy:           true,
		catalog:           &server.CatalogSnapshot{HasUpdates: false},
		sales:             []server.SaleRecord{},
		returns:           []server.ReturnRecord{},
		pushSalesResult:   &server.PushResult{Success: true},
		pushReturnsResult: &server.PushResult{Success: true},
	}
	o, _ := newTestOrchestrator(t, api)
	s := NewScheduler(o, testSyncConfig(true))

	result := s.SyncNow()
	if result == nil {
		t.Fatal("SyncNow returned nil")
	}
	if !result.Online {
		t.Error("manual cycle reported offline")
	}
	if s.LastCycle() != result {
		t.Error("LastCycle does not expose the manual cycle")
	}
}

func TestSyncNowSerializesConcurrentCallers(t *testing.T) {
	api := &stubAPI{healthy: false}
	o, _ := newTestOrchestrator(t, api)
	s := NewScheduler(o, testSyncConfig(true))

	var wg gosync.WaitGroup
	results := make([]*CycleResult, 8)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.SyncNow()
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r == nil {
			t.Fatalf("caller %d got nil result", i)
		}
	}
}
