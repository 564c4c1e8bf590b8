package voice

import (
	"sync"
	"time"

	"chatbank/internal/logger"
)

// Clock reports playback time in seconds. Injectable for tests.
type Clock func() float64

// Sink consumes decoded playback audio. The exec-based player implements it;
// tests substitute a recorder.
type Sink interface {
	WritePCM(samples []float32) error
	Close() error
}

type node struct {
	timer *time.Timer
}

// Scheduler plays inbound audio buffers back-to-back. Each buffer starts at
// max(nextStart, now), so bursts queue gaplessly and late arrivals start
// immediately; nextStart advances by the buffer's duration. Scheduled but
// unfinished buffers are tracked so an interruption can stop them all.
type Scheduler struct {
	mu         sync.Mutex
	clock      Clock
	sink       Sink
	sampleRate int
	nextStart  float64
	pending    map[*node]struct{}
}

// NewScheduler creates a playback scheduler. A nil clock uses monotonic time
// since creation.
func NewScheduler(sink Sink, sampleRate int, clock Clock) *Scheduler {
	if clock == nil {
		epoch := time.Now()
		clock = func() float64 { return time.Since(epoch).Seconds() }
	}
	return &Scheduler{
		clock:      clock,
		sink:       sink,
		sampleRate: sampleRate,
		pending:    make(map[*node]struct{}),
	}
}

// Schedule queues one decoded buffer and returns its start time in seconds.
func (s *Scheduler) Schedule(samples []float32) float64 {
	duration := float64(len(samples)) / float64(s.sampleRate)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	start := s.nextStart
	if now > start {
		start = now
	}
	s.nextStart = start + duration

	n := &node{}
	s.pending[n] = struct{}{}
	delay := time.Duration((start - now) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	n.timer = time.AfterFunc(delay, func() { s.play(n, samples) })
	return start
}

// play writes one buffer to the sink, unless the node was flushed by an
// interruption before its start time.
func (s *Scheduler) play(n *node, samples []float32) {
	s.mu.Lock()
	if _, live := s.pending[n]; !live {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.sink.WritePCM(samples); err != nil {
		logger.Warn("playback write failed", "error", err)
	}

	s.mu.Lock()
	delete(s.pending, n)
	s.mu.Unlock()
}

// Interrupt stops every tracked pending buffer and resets the scheduling
// clock to zero, so stale audio from the previous turn never plays over the
// new one.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := range s.pending {
		if n.timer != nil {
			n.timer.Stop()
		}
		delete(s.pending, n)
	}
	s.nextStart = 0
}

// PendingCount reports how many scheduled buffers have not finished.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// NextStart reports the next scheduled start time in seconds.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
