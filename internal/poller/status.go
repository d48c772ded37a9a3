package poller

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the loop for operators.
// LastCycle and LastSuccess are nil until the first such cycle.
type Snapshot struct {
	DeviceID        string     `json:"device"`
	IntervalSeconds int        `json:"interval_seconds"`
	Cycles          uint64     `json:"cycles"`
	Failures        uint64     `json:"failures"`
	LastCycle       *time.Time `json:"last_cycle,omitempty"`
	LastSuccess     *time.Time `json:"last_success,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// Status publishes loop snapshots to readers on other goroutines.
// The loop is the only writer.
type Status struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatus creates an empty status for a device.
func NewStatus(deviceID string, intervalSeconds int) *Status {
	return &Status{snap: Snapshot{DeviceID: deviceID, IntervalSeconds: intervalSeconds}}
}

// Snapshot returns a copy of the latest state.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Status) record(at time.Time, state PollState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Cycles++
	s.snap.LastCycle = &at
	s.snap.IntervalSeconds = state.IntervalSeconds
	if err != nil {
		s.snap.Failures++
		s.snap.LastError = err.Error()
		return
	}
	s.snap.LastSuccess = &at
	s.snap.LastError = ""
}
