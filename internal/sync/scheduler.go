package sync

import (
	"log"
	"sync"
	"time"

	"github.com/beizuri/posedge/internal/config"
)

// startupGrace delays the first cycle so the HTTP server and database
// settle before the first network round-trip
const startupGrace = 5 * time.Second

// Scheduler drives the orchestrator on a fixed interval in a background
// goroutine. Manual triggers and the timer share one mutex, so at most
// one cycle runs at a time.
type Scheduler struct {
	orchestrator *Orchestrator
	cfg          config.SyncConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}

	cycleMu   sync.Mutex
	lastCycle *CycleResult
}

// NewScheduler creates a scheduler for the given orchestrator
func NewScheduler(orchestrator *Orchestrator, cfg config.SyncConfig) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		cfg:          cfg,
	}
}

// Start launches the background loop. Does nothing when sync is disabled
// or the loop is already running.
func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		log.Println("📴 Sync: disabled, terminal runs standalone")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	log.Printf("🔄 Sync: background sync every %s against %s", s.cfg.Interval, s.cfg.ServerURL)
	go s.loop(s.stopChan)
}

// Stop signals the loop to exit. A cycle already in flight finishes; the
// stop is observed at the next wake-up.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
	log.Println("🛑 Sync: background sync stopped")
}

// SyncNow runs one cycle immediately, serialized against the background
// loop. Safe to call whether or not the scheduler was started.
func (s *Scheduler) SyncNow() *CycleResult {
	return s.runCycle()
}

// Running reports whether the background loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastCycle returns the most recent cycle result, or nil before the
// first cycle
func (s *Scheduler) LastCycle() *CycleResult {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.lastCycle
}

func (s *Scheduler) loop(stop chan struct{}) {
	select {
	case <-stop:
		return
	case <-time.After(startupGrace):
	}

	// No incremental cycle makes sense before the initial catalog sync
	// has succeeded once
	for {
		s.cycleMu.Lock()
		ok := s.orchestrator.Bootstrap()
		s.cycleMu.Unlock()
		if ok {
			break
		}
		log.Printf("⚠️ Sync: initial sync not done, retrying in %s", s.cfg.Interval)
		select {
		case <-stop:
			return
		case <-time.After(s.cfg.Interval):
		}
	}

	for {
		s.runCycle()
		select {
		case <-stop:
			return
		case <-time.After(s.cfg.Interval):
		}
	}
}

func (s *Scheduler) runCycle() *CycleResult {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	result := s.orchestrator.FullSync()
	s.lastCycle = result
	return result
}
