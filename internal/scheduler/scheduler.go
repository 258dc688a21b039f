package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// RealClock returns the wall clock used outside of tests.
func RealClock() Clock { return realClock{} }

type key struct {
	guildID string
	userID  string
}

type slot struct {
	timer  Timer
	fireAt time.Time
}

// Scheduler owns the table of pending timed punishments, at most one
// per (guild, user). Scheduling over an occupied key cancels the old
// timer first, so two undo callbacks are never live for the same pair.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	logger *zap.Logger
	slots  map[key]*slot
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  realClock{},
		logger: logger,
		slots:  make(map[key]*slot),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

// Schedule registers undo to run at fireAt. A fireAt in the past fires
// as soon as possible. The newer punishment always wins: any timer
// already registered for the pair is cancelled without firing.
func (s *Scheduler) Schedule(guildID, userID string, fireAt time.Time, undo func() error) {
	k := key{guildID: guildID, userID: userID}

	s.mu.Lock()
	if existing, ok := s.slots[k]; ok {
		existing.timer.Stop()
		delete(s.slots, k)
	}

	delay := fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	sl := &slot{fireAt: fireAt}
	s.slots[k] = sl
	sl.timer = s.clock.AfterFunc(delay, func() {
		s.fire(k, sl, undo)
	})
	s.mu.Unlock()

	s.logger.Info("punishment scheduled",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Time("fire_at", fireAt))
}

// Cancel stops and removes the pair's timer. It reports whether a
// timer existed; cancelling an absent slot is a no-op.
func (s *Scheduler) Cancel(guildID, userID string) bool {
	k := key{guildID: guildID, userID: userID}

	s.mu.Lock()
	sl, ok := s.slots[k]
	if ok {
		sl.timer.Stop()
		delete(s.slots, k)
	}
	s.mu.Unlock()
	return ok
}

// Len reports the number of pending slots.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// StopAll cancels every pending timer, used during shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for k, sl := range s.slots {
		sl.timer.Stop()
		delete(s.slots, k)
	}
	s.mu.Unlock()
}

func (s *Scheduler) fire(k key, sl *slot, undo func() error) {
	s.mu.Lock()
	// A superseding Schedule may have replaced this slot between the
	// timer firing and the lock being acquired. Only the current slot
	// runs its undo.
	if current, ok := s.slots[k]; !ok || current != sl {
		s.mu.Unlock()
		return
	}
	delete(s.slots, k)
	s.mu.Unlock()

	if err := undo(); err != nil {
		s.logger.Error("scheduled undo failed",
			zap.String("guild_id", k.guildID),
			zap.String("user_id", k.userID),
			zap.Error(err))
	}
}
