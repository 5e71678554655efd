// Package schedule decides when the now-playing state is fetched next.
//
// Two deadlines are kept apart: confirmAt is a one-shot poll that follows a
// user action, nextPollAt is the regular cadence. confirmAt wins while set.
package schedule

import "time"

const (
	// ConfirmDelay is how long to wait after a user action before checking
	// what the service made of it.
	ConfirmDelay = 1000 * time.Millisecond
	// TrackEndGuard is added to the track end so the poll lands on the next
	// track rather than the tail of the current one.
	TrackEndGuard = 500 * time.Millisecond
	// UnknownDurationPoll is used when a track reports no duration.
	UnknownDurationPoll = 2000 * time.Millisecond

	emptyStep     = 1000 * time.Millisecond
	transportStep = 100 * time.Millisecond
)

// Scheduler is owned by the sync worker and is not safe for concurrent use.
type Scheduler struct {
	interval   time.Duration
	nextPollAt time.Time
	confirmAt  time.Time
	streak     int
	armed      bool
}

// New returns an armed scheduler whose first poll is due immediately.
func New(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{interval: interval, armed: true}
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Streak is the number of consecutive empty or failed polls.
func (s *Scheduler) Streak() int { return s.streak }

// Armed reports whether polling is enabled.
func (s *Scheduler) Armed() bool { return s.armed }

// Arm enables polling with a poll due at now.
func (s *Scheduler) Arm(now time.Time) {
	s.armed = true
	s.nextPollAt = now
	s.confirmAt = time.Time{}
}

// Disarm stops polling until the next Arm.
func (s *Scheduler) Disarm() {
	s.armed = false
	s.confirmAt = time.Time{}
}

// Next returns the deadline of the next poll. The zero time means no poll is
// planned.
func (s *Scheduler) Next() time.Time {
	if !s.armed {
		return time.Time{}
	}
	if !s.confirmAt.IsZero() {
		return s.confirmAt
	}
	return s.nextPollAt
}

// Due reports whether a poll should be issued at now.
func (s *Scheduler) Due(now time.Time) bool {
	next := s.Next()
	return s.armed && !now.Before(next)
}

// OnPlaying records a non-empty now-playing response.
func (s *Scheduler) OnPlaying(now time.Time, isPlaying bool, progress, duration int) {
	s.streak = 0
	s.confirmAt = time.Time{}
	switch {
	case duration <= 0:
		s.nextPollAt = now.Add(UnknownDurationPoll)
	case isPlaying:
		remaining := time.Duration(max(duration-progress, 0)) * time.Millisecond
		if remaining < s.interval {
			s.nextPollAt = now.Add(remaining + TrackEndGuard)
			return
		}
		s.nextPollAt = now.Add(s.interval)
	default:
		s.nextPollAt = now.Add(s.interval)
	}
}

// OnEmpty records a "nothing playing" response. The gap grows by a second
// per consecutive empty response.
func (s *Scheduler) OnEmpty(now time.Time) {
	s.confirmAt = time.Time{}
	s.nextPollAt = now.Add(s.interval + time.Duration(s.streak)*emptyStep)
	s.streak++
}

// OnTransportError schedules a fast retry after a request got no response.
func (s *Scheduler) OnTransportError(now time.Time) {
	s.confirmAt = time.Time{}
	s.nextPollAt = now.Add(time.Duration(s.streak) * transportStep)
	s.streak++
}

// OnError applies the error backoff after a server or parse failure.
func (s *Scheduler) OnError(now time.Time) {
	s.OnEmpty(now)
}

// Confirm plans a poll shortly after a user-initiated action completed. It
// supersedes whatever was planned before.
func (s *Scheduler) Confirm(now time.Time) {
	if !s.armed {
		return
	}
	s.confirmAt = now.Add(ConfirmDelay)
}

// PollNow requests a poll at now without touching the streak.
func (s *Scheduler) PollNow(now time.Time) {
	s.confirmAt = time.Time{}
	s.nextPollAt = now
}
