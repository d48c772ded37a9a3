package poller

import "time"

// Stage names the part of a cycle that failed.
type Stage string

const (
	StageAcquire Stage = "acquire"
	StageSubmit  Stage = "submit"
	StagePanic   Stage = "panic"
)

// Observer receives loop events, typically for metrics.
// Calls are made from the loop goroutine.
type Observer interface {
	CycleStarted()
	CycleSucceeded(took time.Duration)
	CycleFailed(stage Stage)
	IntervalChanged(seconds int)
	Waiting(seconds int)
}

type nopObserver struct{}

func (nopObserver) CycleStarted()                {}
func (nopObserver) CycleSucceeded(time.Duration) {}
func (nopObserver) CycleFailed(Stage)            {}
func (nopObserver) IntervalChanged(int)          {}
func (nopObserver) Waiting(int)                  {}
