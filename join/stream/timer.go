package stream

import (
	"container/heap"
	"math"

	"github.com/zoobzio/clockz"
)

type TimeDomain int

const (
	EventTime TimeDomain = iota
	ProcessingTime
)

func (d TimeDomain) String() string {
	if d == ProcessingTime {
		return `processing-time`
	}

	return `event-time`
}

// Timer is a cleanup deadline registered for a join key.
type Timer struct {
	Key       string
	Timestamp int64
}

// TimerService is the timer and clock view a join has of its runtime. Registering the same
// (key, timestamp) twice results in a single firing.
type TimerService interface {
	CurrentWatermark() int64
	// CurrentProcessingTime is in epoch milliseconds.
	CurrentProcessingTime() int64
	RegisterEventTimeTimer(key string, timestamp int64)
	RegisterProcessingTimeTimer(key string, timestamp int64)
}

type timerQueue []Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].Timestamp == q[j].Timestamp {
		return q[i].Key < q[j].Key
	}
	return q[i].Timestamp < q[j].Timestamp
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x interface{}) { *q = append(*q, x.(Timer)) }

func (q *timerQueue) Pop() interface{} {
	old := *q
	t := old[len(old)-1]
	*q = old[:len(old)-1]
	return t
}

// HeapTimerService keeps one min heap per time domain. It is owned by a single partition.
type HeapTimerService struct {
	clock      clockz.Clock
	watermark  int64
	queues     [2]*timerQueue
	registered [2]map[Timer]struct{}
}

func NewHeapTimerService(clock clockz.Clock) *HeapTimerService {
	s := &HeapTimerService{
		clock:     clock,
		watermark: math.MinInt64,
	}

	for d := range s.queues {
		s.queues[d] = new(timerQueue)
		s.registered[d] = make(map[Timer]struct{})
	}

	return s
}

func (s *HeapTimerService) CurrentWatermark() int64 {
	return s.watermark
}

func (s *HeapTimerService) CurrentProcessingTime() int64 {
	return s.clock.Now().UnixMilli()
}

func (s *HeapTimerService) RegisterEventTimeTimer(key string, timestamp int64) {
	s.register(EventTime, Timer{Key: key, Timestamp: timestamp})
}

func (s *HeapTimerService) RegisterProcessingTimeTimer(key string, timestamp int64) {
	s.register(ProcessingTime, Timer{Key: key, Timestamp: timestamp})
}

func (s *HeapTimerService) register(domain TimeDomain, t Timer) {
	if _, ok := s.registered[domain][t]; ok {
		return
	}

	s.registered[domain][t] = struct{}{}
	heap.Push(s.queues[domain], t)
}

// AdvanceWatermark moves the watermark forward and fires every event time timer at or
// before it, in timestamp order. A watermark that does not move forward is ignored.
func (s *HeapTimerService) AdvanceWatermark(watermark int64, fire func(Timer) error) error {
	if watermark <= s.watermark {
		return nil
	}
	s.watermark = watermark

	return s.fire(EventTime, watermark, fire)
}

// AdvanceProcessingTime fires every processing time timer that is due on the clock.
func (s *HeapTimerService) AdvanceProcessingTime(fire func(Timer) error) error {
	return s.fire(ProcessingTime, s.CurrentProcessingTime(), fire)
}

func (s *HeapTimerService) fire(domain TimeDomain, time int64, fire func(Timer) error) error {
	q := s.queues[domain]
	for q.Len() > 0 && (*q)[0].Timestamp <= time {
		t := heap.Pop(q).(Timer)
		delete(s.registered[domain], t)
		if err := fire(t); err != nil {
			return err
		}
	}

	return nil
}

// Pending is the number of timers not yet fired.
func (s *HeapTimerService) Pending(domain TimeDomain) int {
	return s.queues[domain].Len()
}
