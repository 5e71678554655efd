package queue

// Kind identifies the remote effect an Action asks for. At most one Action of
// a given Kind may be queued at a time.
type Kind int

const (
	KindGetToken Kind = iota
	KindCurrentlyPlaying
	KindCurrentProfile
	KindNext
	KindPrevious
	KindSeek
	KindToggle
	KindPlayContext
	KindGetDevices
	KindSetVolume
	KindCheckLike
	KindToggleLike
	KindToggleShuffle
	KindToggleRepeat
	KindTransferPlayback
	KindGetPlaylistInfo
	KindGetPlaylists
	KindGetImage
)

var kindNames = map[Kind]string{
	KindGetToken:         "GetToken",
	KindCurrentlyPlaying: "CurrentlyPlaying",
	KindCurrentProfile:   "CurrentProfile",
	KindNext:             "Next",
	KindPrevious:         "Previous",
	KindSeek:             "Seek",
	KindToggle:           "Toggle",
	KindPlayContext:      "PlayContext",
	KindGetDevices:       "GetDevices",
	KindSetVolume:        "SetVolume",
	KindCheckLike:        "CheckLike",
	KindToggleLike:       "ToggleLike",
	KindToggleShuffle:    "ToggleShuffle",
	KindToggleRepeat:     "ToggleRepeat",
	KindTransferPlayback: "TransferPlayback",
	KindGetPlaylistInfo:  "GetPlaylistInfo",
	KindGetPlaylists:     "GetPlaylists",
	KindGetImage:         "GetImage",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// PlaybackControl reports whether the action drives the active device. A 404
// on one of these means the device went away.
func (k Kind) PlaybackControl() bool {
	switch k {
	case KindNext, KindPrevious, KindSeek, KindToggle, KindPlayContext,
		KindSetVolume, KindToggleShuffle, KindToggleRepeat, KindTransferPlayback:
		return true
	}
	return false
}

// UserInitiated reports whether a confirmation poll should follow the action.
func (k Kind) UserInitiated() bool {
	switch k {
	case KindSeek, KindToggle, KindNext, KindPrevious, KindPlayContext:
		return true
	}
	return false
}

// Action is a single intended remote effect. Only the payload fields relevant
// to Kind are set; an Action is never mutated after it is queued.
type Action struct {
	Kind Kind

	// Code is the authorization code for GetToken. Empty means a refresh grant.
	Code string
	// Millis is the Seek target.
	Millis int
	// Percent is the SetVolume target.
	Percent int
	// URI and Name describe the PlayContext target.
	URI  string
	Name string
	// ID is the playlist for GetPlaylistInfo.
	ID string
	// URL is the GetImage source.
	URL string
	// On is the state Toggle, ToggleLike or ToggleShuffle asks for.
	On bool
	// Repeat is the wire repeat mode ToggleRepeat asks for.
	Repeat string
}

func (a Action) String() string { return a.Kind.String() }

func GetToken() Action                 { return Action{Kind: KindGetToken} }
func Authorize(code string) Action     { return Action{Kind: KindGetToken, Code: code} }
func CurrentlyPlaying() Action         { return Action{Kind: KindCurrentlyPlaying} }
func CurrentProfile() Action           { return Action{Kind: KindCurrentProfile} }
func Next() Action                     { return Action{Kind: KindNext} }
func Previous() Action                 { return Action{Kind: KindPrevious} }
func Seek(targetMillis int) Action     { return Action{Kind: KindSeek, Millis: targetMillis} }
func Toggle() Action                   { return Action{Kind: KindToggle} }
func GetDevices() Action               { return Action{Kind: KindGetDevices} }
func SetVolume(percent int) Action     { return Action{Kind: KindSetVolume, Percent: clampPercent(percent)} }
func CheckLike() Action                { return Action{Kind: KindCheckLike} }
func ToggleLike() Action               { return Action{Kind: KindToggleLike} }
func ToggleShuffle() Action            { return Action{Kind: KindToggleShuffle} }
func ToggleRepeat() Action             { return Action{Kind: KindToggleRepeat} }
func TransferPlayback() Action         { return Action{Kind: KindTransferPlayback} }
func GetPlaylistInfo(id string) Action { return Action{Kind: KindGetPlaylistInfo, ID: id} }
func GetPlaylists() Action             { return Action{Kind: KindGetPlaylists} }
func GetImage(url string) Action       { return Action{Kind: KindGetImage, URL: url} }

func PlayContext(uri, name string) Action {
	return Action{Kind: KindPlayContext, URI: uri, Name: name}
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
