package session

import (
	"time"

	"github.com/tunez/knob/internal/remote"
)

// Changes lists what a poll result changed compared to the previous state.
type Changes struct {
	TrackChanged   bool
	ContextChanged bool
	ImageChanged   bool
}

// likedSongsName names the saved-tracks collection context.
const likedSongsName = "Liked Songs"

// ApplyPlayer folds a now-playing response into s. A nil player means
// nothing is playing.
func ApplyPlayer(s State, p *remote.PlayerState, now time.Time) (State, Changes) {
	if p == nil || p.Item == nil {
		var ch Changes
		ch.TrackChanged = s.TrackID != ""
		ch.ContextChanged = s.ContextURI != ""
		ch.ImageChanged = s.ImageURL != ""
		s.ResetProgress(false)
		s.LastUpdate = now
		return s, ch
	}

	item := p.Item
	ch := Changes{
		TrackChanged: item.ID != s.TrackID,
		ImageChanged: item.CoverURL() != s.ImageURL,
	}
	next := s
	next.TrackID = item.ID
	next.TrackName = item.Name
	next.ArtistsDisplay = item.ArtistsDisplay()
	next.AlbumID = item.Album.ID
	next.AlbumName = item.Album.Name
	next.ImageURL = item.CoverURL()
	next.DurationMillis = max(item.DurationMs, 0)
	next.ProgressMillis = max(p.ProgressMs, 0)
	if next.DurationMillis > 0 {
		next.ProgressMillis = min(next.ProgressMillis, next.DurationMillis)
	}
	next.EstimatedProgressMillis = next.ProgressMillis
	next.LastUpdate = now
	next.IsPlaying = p.IsPlaying
	next.IsShuffled = p.ShuffleState
	next.Repeat = ParseRepeat(p.RepeatState)
	next.IsPrivateSession = p.Device.IsPrivateSession
	d := p.Actions.Disallows
	next.Disallow = Disallows{
		SkipNext:      d.SkippingNext,
		SkipPrev:      d.SkippingPrev,
		Shuffle:       d.TogglingShuffle,
		RepeatContext: d.TogglingRepeatContext,
		RepeatTrack:   d.TogglingRepeatTrack,
	}
	if ch.TrackChanged {
		next.IsLiked = false
		next.CheckedLike = false
	}

	uri := ""
	if p.Context != nil {
		uri = p.Context.URI
	}
	if uri != s.ContextURI {
		ch.ContextChanged = true
		next.ContextURI = uri
		next.ContextName = ""
	}
	if next.ContextName == "" {
		switch kind, _ := remote.ContextID(uri); kind {
		case "album":
			next.ContextName = next.AlbumName
		case "collection":
			next.ContextName = likedSongsName
		}
	}
	return next, ch
}
