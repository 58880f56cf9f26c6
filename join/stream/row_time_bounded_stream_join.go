package stream

import (
	"github.com/tryfix/kjoin/data"
)

type rowTime struct {
	timers    TimerService
	timeIndex [2]int
}

func (t *rowTime) domain() TimeDomain {
	return EventTime
}

// updateOperatorTime floors the watermark at zero. Both sides share it.
func (t *rowTime) updateOperatorTime() int64 {
	if wm := t.timers.CurrentWatermark(); wm > 0 {
		return wm
	}

	return 0
}

func (t *rowTime) rowTime(side Side, row data.Row) (int64, error) {
	return row.Int64(t.timeIndex[side])
}

func (t *rowTime) registerTimer(key string, cleanupTime int64) {
	t.timers.RegisterEventTimeTimer(key, cleanupTime)
}

// NewRowTimeBoundedStreamJoin creates an event time join. Row times are read from the
// LeftTimeIndex and RightTimeIndex fields, state expires as the watermark advances.
func NewRowTimeBoundedStreamJoin(conf *Config, timers TimerService) (*TimeBoundedStreamJoin, error) {
	return newTimeBoundedStreamJoin(conf, &rowTime{
		timers:    timers,
		timeIndex: [2]int{conf.LeftTimeIndex, conf.RightTimeIndex},
	})
}
