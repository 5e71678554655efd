package remote

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	DurationMs int      `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// ArtistsDisplay joins artist names for display.
func (t Track) ArtistsDisplay() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// CoverURL picks a medium sized cover. Images are listed largest first.
func (t Track) CoverURL() string {
	imgs := t.Album.Images
	switch len(imgs) {
	case 0:
		return ""
	case 1, 2:
		return imgs[len(imgs)-1].URL
	default:
		return imgs[len(imgs)/2].URL
	}
}

type Device struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	IsActive         bool   `json:"is_active"`
	IsPrivateSession bool   `json:"is_private_session"`
	IsRestricted     bool   `json:"is_restricted"`
	VolumePercent    *int   `json:"volume_percent"`
}

// Volume returns the reported volume, or -1 when the device does not expose one.
func (d Device) Volume() int {
	if d.VolumePercent == nil {
		return -1
	}
	return *d.VolumePercent
}

type PlayContext struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

type Disallows struct {
	SkippingNext          bool `json:"skipping_next"`
	SkippingPrev          bool `json:"skipping_prev"`
	TogglingShuffle       bool `json:"toggling_shuffle"`
	TogglingRepeatContext bool `json:"toggling_repeat_context"`
	TogglingRepeatTrack   bool `json:"toggling_repeat_track"`
}

// PlayerState is the body of GET /v1/me/player.
type PlayerState struct {
	Device       Device       `json:"device"`
	ShuffleState bool         `json:"shuffle_state"`
	RepeatState  string       `json:"repeat_state"`
	Context      *PlayContext `json:"context"`
	ProgressMs   int          `json:"progress_ms"`
	IsPlaying    bool         `json:"is_playing"`
	Item         *Track       `json:"item"`
	Actions      struct {
		Disallows Disallows `json:"disallows"`
	} `json:"actions"`
}

type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Description string `json:"description"`
}

// PlaylistPage is one page of GET /v1/me/playlists.
type PlaylistPage struct {
	Items  []Playlist `json:"items"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	Total  int        `json:"total"`
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
}

func decode[T any](body []byte, what string) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decode %s: %v: %w", what, err, ErrParse)
	}
	return v, nil
}

// DecodePlayer decodes a player body. An empty body yields nil: nothing is
// playing.
func DecodePlayer(body []byte) (*PlayerState, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	st, err := decode[PlayerState](body, "player")
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func DecodeDevices(body []byte) ([]Device, error) {
	r, err := decode[devicesResponse](body, "devices")
	return r.Devices, err
}

func DecodeProfile(body []byte) (Profile, error) {
	p, err := decode[Profile](body, "profile")
	if err == nil && p.ID == "" {
		return p, fmt.Errorf("decode profile: missing id: %w", ErrParse)
	}
	return p, err
}

func DecodePlaylists(body []byte) (PlaylistPage, error) {
	return decode[PlaylistPage](body, "playlists")
}

func DecodePlaylistInfo(body []byte) (Playlist, error) {
	return decode[Playlist](body, "playlist")
}

// DecodeContains decodes the saved-tracks check, one flag per requested id.
func DecodeContains(body []byte) ([]bool, error) {
	flags, err := decode[[]bool](body, "saved tracks")
	if err == nil && len(flags) == 0 {
		return nil, fmt.Errorf("decode saved tracks: empty: %w", ErrParse)
	}
	return flags, err
}

// ContextID returns the id part of a context uri such as
// "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", and its kind.
func ContextID(uri string) (kind, id string) {
	parts := strings.Split(uri, ":")
	switch {
	case len(parts) >= 3 && parts[len(parts)-1] == "collection":
		return "collection", ""
	case len(parts) >= 3:
		return parts[len(parts)-2], parts[len(parts)-1]
	default:
		return "", ""
	}
}
