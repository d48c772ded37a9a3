package poller

import (
	"fmt"
	"time"

	"github.com/kiwiot/faceometer/agent/internal/models"
)

// PollState is the loop state carried from one cycle to the next.
// It is a value: Cycle takes the current state and returns the next one.
type PollState struct {
	// IntervalSeconds is the wait between the end of one cycle and the start
	// of the next. Always positive.
	IntervalSeconds int
}

// NewPollState creates the initial state from the configured interval.
func NewPollState(intervalSeconds int) (PollState, error) {
	if intervalSeconds <= 0 {
		return PollState{}, fmt.Errorf("interval must be positive, got %d", intervalSeconds)
	}
	return PollState{IntervalSeconds: intervalSeconds}, nil
}

// Interval returns the wait as a time.Duration.
func (s PollState) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Apply returns the state after an endpoint directive and whether the
// interval changed. Only a positive refresh time that differs from the
// current interval changes anything.
func (s PollState) Apply(d models.Directive) (PollState, bool) {
	if !d.HasRefreshTime() || *d.RefreshTimeSeconds == s.IntervalSeconds {
		return s, false
	}
	return PollState{IntervalSeconds: *d.RefreshTimeSeconds}, true
}
