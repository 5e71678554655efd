// Package session holds the local view of what is playing on the remote
// service and the rules for interpolating playback progress between polls.
package session

import (
	"sync"
	"time"
)

type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatContext
	RepeatTrack
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatOff:
		return "Off"
	case RepeatContext:
		return "Context"
	case RepeatTrack:
		return "Track"
	default:
		return "Unknown"
	}
}

// Wire returns the value the remote API uses for the repeat state.
func (r RepeatMode) Wire() string {
	switch r {
	case RepeatContext:
		return "context"
	case RepeatTrack:
		return "track"
	default:
		return "off"
	}
}

func ParseRepeat(s string) RepeatMode {
	switch s {
	case "context":
		return RepeatContext
	case "track":
		return RepeatTrack
	default:
		return RepeatOff
	}
}

// Disallows mirrors the actions the service currently refuses.
type Disallows struct {
	SkipNext      bool
	SkipPrev      bool
	Shuffle       bool
	RepeatContext bool
	RepeatTrack   bool
}

// State is the snapshot of the remote session.
type State struct {
	TrackID          string
	TrackName        string
	ArtistsDisplay   string
	AlbumID          string
	AlbumName        string
	ImageURL         string
	ContextURI       string
	ContextName      string
	IsPlaying        bool
	IsShuffled       bool
	Repeat           RepeatMode
	IsPrivateSession bool
	IsLiked          bool
	CheckedLike      bool
	Disallow         Disallows

	// ProgressMillis is the position at LastUpdate.
	ProgressMillis int
	DurationMillis int
	// EstimatedProgressMillis is filled by Store.Snapshot.
	EstimatedProgressMillis int
	LastUpdate              time.Time
}

// Estimate interpolates the playback position at now. The result never
// exceeds the track duration and never goes below the last known position.
// Without a duration nothing is interpolated.
func (s State) Estimate(now time.Time) int {
	progress := max(s.ProgressMillis, 0)
	if s.DurationMillis <= 0 {
		return progress
	}
	if s.IsPlaying && !s.LastUpdate.IsZero() {
		if elapsed := now.Sub(s.LastUpdate); elapsed > 0 {
			progress += int(elapsed.Milliseconds())
		}
	}
	return min(progress, s.DurationMillis)
}

// Freeze pins the interpolated position so it stays put across a play state
// change.
func (s *State) Freeze(now time.Time) {
	s.ProgressMillis = s.Estimate(now)
	s.EstimatedProgressMillis = s.ProgressMillis
	s.LastUpdate = now
}

// Finished reports whether the estimated position reached the end of a known
// track.
func (s State) Finished(now time.Time) bool {
	return s.DurationMillis > 0 && s.TrackID != "" && s.Estimate(now) >= s.DurationMillis
}

// ResetProgress clears the track and its progress. The context survives when
// keepContext is set.
func (s *State) ResetProgress(keepContext bool) {
	ctxURI, ctxName := s.ContextURI, s.ContextName
	shuffled, repeat, private := s.IsShuffled, s.Repeat, s.IsPrivateSession
	*s = State{
		IsShuffled:       shuffled,
		Repeat:           repeat,
		IsPrivateSession: private,
	}
	if keepContext {
		s.ContextURI, s.ContextName = ctxURI, ctxName
	}
}

// Store guards the state. The sync worker writes; everything else reads
// snapshots.
type Store struct {
	mu    sync.RWMutex
	state State
}

func NewStore() *Store { return &Store{} }

// Snapshot returns a copy with EstimatedProgressMillis evaluated at now.
func (s *Store) Snapshot(now time.Time) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state
	snap.EstimatedProgressMillis = snap.Estimate(now)
	return snap
}

// Update applies fn under the write lock.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Replace swaps the whole state.
func (s *Store) Replace(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}
