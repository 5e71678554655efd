package session

import (
	"time"

	"github.com/tunez/knob/internal/queue"
)

// Undo remembers what an optimistic update replaced.
type Undo struct {
	Kind queue.Kind
	// URI is the context an optimistic PlayContext installed.
	URI  string
	prev State
}

// ApplyOptimistic returns the state the user should see right away for a,
// plus what is needed to take it back. ok is false for actions without a
// predictable local effect.
func ApplyOptimistic(s State, a queue.Action, now time.Time) (next State, undo Undo, ok bool) {
	undo = Undo{Kind: a.Kind, prev: s}
	next = s
	switch a.Kind {
	case queue.KindToggle:
		next.Freeze(now)
		next.IsPlaying = !s.IsPlaying
	case queue.KindToggleLike:
		next.IsLiked = !s.IsLiked
	case queue.KindToggleShuffle:
		next.IsShuffled = !s.IsShuffled
	case queue.KindToggleRepeat:
		next.Repeat = nextRepeat(s.Repeat, s.Disallow)
	case queue.KindSeek:
		target := max(a.Millis, 0)
		if s.DurationMillis > 0 {
			target = min(target, s.DurationMillis)
		}
		next.ProgressMillis = target
		next.EstimatedProgressMillis = target
		next.LastUpdate = now
	case queue.KindPlayContext:
		next.ContextURI = a.URI
		next.ContextName = a.Name
		next.IsPlaying = true
		next.LastUpdate = now
		undo.URI = a.URI
	default:
		return s, Undo{}, false
	}
	return next, undo, true
}

// Pin records on a the value s shows for it, so the request carries what
// the user asked for even when a poll rewrites the state before it is sent.
func Pin(a queue.Action, s State) queue.Action {
	switch a.Kind {
	case queue.KindToggle:
		a.On = s.IsPlaying
	case queue.KindToggleLike:
		a.On = s.IsLiked
	case queue.KindToggleShuffle:
		a.On = s.IsShuffled
	case queue.KindToggleRepeat:
		a.Repeat = s.Repeat.Wire()
	}
	return a
}

// KeepPending copies the optimistic values of the pending kinds from shown
// into polled.
func KeepPending(polled, shown State, pending []queue.Kind) State {
	for _, k := range pending {
		switch k {
		case queue.KindToggle:
			polled.IsPlaying = shown.IsPlaying
		case queue.KindToggleShuffle:
			polled.IsShuffled = shown.IsShuffled
		case queue.KindToggleRepeat:
			polled.Repeat = shown.Repeat
		case queue.KindToggleLike:
			if polled.TrackID == shown.TrackID {
				polled.IsLiked = shown.IsLiked
			}
		}
	}
	return polled
}

// Reconcile settles an optimistic update once the remote call finished. On
// success the optimistic state stands.
func Reconcile(s State, undo Undo, succeeded bool) State {
	if succeeded {
		return s
	}
	switch undo.Kind {
	case queue.KindToggle:
		// Progress stays frozen at the toggle point, which equals the
		// pre-toggle estimate.
		s.IsPlaying = undo.prev.IsPlaying
	case queue.KindToggleLike:
		s.IsLiked = undo.prev.IsLiked
	case queue.KindToggleShuffle:
		s.IsShuffled = undo.prev.IsShuffled
	case queue.KindToggleRepeat:
		s.Repeat = undo.prev.Repeat
	case queue.KindSeek:
		s.ResetProgress(true)
	case queue.KindPlayContext:
		if s.ContextURI == undo.URI {
			s.ContextURI = ""
			s.ContextName = ""
		}
		s.IsPlaying = undo.prev.IsPlaying
	}
	return s
}

// nextRepeat cycles Off -> Context -> Track -> Off, skipping modes the
// service disallows.
func nextRepeat(cur RepeatMode, d Disallows) RepeatMode {
	m := cur
	for range 3 {
		m = (m + 1) % 3
		switch {
		case m == RepeatContext && d.RepeatContext:
			continue
		case m == RepeatTrack && d.RepeatTrack:
			continue
		}
		return m
	}
	return cur
}
