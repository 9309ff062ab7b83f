package sync

import "time"

// Event describes the outcome of one sync step, suitable for streaming to
// the POS UI
type Event struct {
	CycleID  string    `json:"cycleId"`
	SyncType string    `json:"syncType"`
	Status   string    `json:"status"`
	Records  int       `json:"records"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// Notifier receives sync step outcomes. Implementations must not block:
// the orchestrator calls Notify from inside its cycle.
type Notifier interface {
	Notify(event Event)
}

// NopNotifier discards all events
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(Event) {}
