package stream

import (
	"github.com/tryfix/kjoin/data"
)

type procTime struct {
	timers TimerService
	now    int64
}

func (t *procTime) domain() TimeDomain {
	return ProcessingTime
}

func (t *procTime) updateOperatorTime() int64 {
	t.now = t.timers.CurrentProcessingTime()
	return t.now
}

// rowTime of a processing time join is the time the row is processed.
func (t *procTime) rowTime(_ Side, _ data.Row) (int64, error) {
	return t.now, nil
}

func (t *procTime) registerTimer(key string, cleanupTime int64) {
	t.timers.RegisterProcessingTimeTimer(key, cleanupTime)
}

// NewProcTimeBoundedStreamJoin creates a processing time join. Bounds and lateness are in
// milliseconds of the timer service clock.
func NewProcTimeBoundedStreamJoin(conf *Config, timers TimerService) (*TimeBoundedStreamJoin, error) {
	return newTimeBoundedStreamJoin(conf, &procTime{timers: timers})
}
