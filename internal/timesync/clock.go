// Package timesync provides the server clock, execution deadlines and the
// clock-sync exchange participants use to estimate their offset.
package timesync

import (
	"time"

	"github.com/navikt/zspatial/internal/models"
)

// Clock is the source of server time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current wall-clock time
func (SystemClock) Now() time.Time { return time.Now() }

// Millis returns t as epoch milliseconds
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Scheduler stamps actions with the time they should execute at
type Scheduler struct {
	Clock   Clock
	Horizon time.Duration
}

// NewScheduler returns a scheduler with the given horizon
func NewScheduler(clock Clock, horizon time.Duration) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{Clock: clock, Horizon: horizon}
}

// Now returns server time in epoch milliseconds
func (s *Scheduler) Now() int64 {
	return Millis(s.Clock.Now())
}

// Deferred returns a deadline one horizon in the future
func (s *Scheduler) Deferred() int64 {
	return s.Now() + s.Horizon.Milliseconds()
}

// Respond answers a clock-sync request. received is the time the request
// was read off the channel; the reply time is taken now. The caller's t0 is
// echoed unchanged.
func Respond(t0 float64, received time.Time, clock Clock) models.ClockSample {
	t1 := Millis(received)
	t2 := Millis(clock.Now())
	if t2 < t1 {
		t2 = t1
	}
	return models.ClockSample{T0: t0, T1: t1, T2: t2}
}
