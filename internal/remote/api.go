package remote

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultAPIURL = "https://api.spotify.com"
	DefaultMarket = "from_token"
	// PlaylistPageSize is the limit used when paging saved playlists.
	PlaylistPageSize = 50
)

// API builds requests for the remote playback service. It holds no state
// besides the endpoint base, so requests can be built on any goroutine.
type API struct {
	base   *url.URL
	market string
}

func NewAPI(baseURL, market string) (*API, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultAPIURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	if market == "" {
		market = DefaultMarket
	}
	return &API{base: u, market: market}, nil
}

func (a *API) url(path string, q url.Values) string {
	rel := &url.URL{Path: path}
	if len(q) > 0 {
		rel.RawQuery = q.Encode()
	}
	u := *a.base
	u.Path = strings.TrimRight(a.base.Path, "/") + rel.Path
	u.RawQuery = rel.RawQuery
	return u.String()
}

func (a *API) req(method, path string, q url.Values, body any) *Request {
	r := &Request{Method: method, URL: a.url(path, q), Header: http.Header{}}
	r.Header.Set("Accept", "application/json")
	if body != nil {
		b, _ := json.Marshal(body)
		r.Body = b
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

// WithBearer sets the Authorization header.
func WithBearer(r *Request, accessToken string) *Request {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set("Authorization", "Bearer "+accessToken)
	return r
}

func deviceQuery(deviceID string) url.Values {
	if deviceID == "" {
		return nil
	}
	return url.Values{"device_id": {deviceID}}
}

func (a *API) Profile() *Request {
	return a.req(http.MethodGet, "/v1/me", nil, nil)
}

func (a *API) Player() *Request {
	return a.req(http.MethodGet, "/v1/me/player", url.Values{"market": {a.market}}, nil)
}

// Play resumes playback, or starts contextURI when it is set.
func (a *API) Play(deviceID, contextURI string) *Request {
	var body any
	if contextURI != "" {
		body = map[string]string{"context_uri": contextURI}
	}
	return a.req(http.MethodPut, "/v1/me/player/play", deviceQuery(deviceID), body)
}

func (a *API) Pause(deviceID string) *Request {
	return a.req(http.MethodPut, "/v1/me/player/pause", deviceQuery(deviceID), nil)
}

func (a *API) Next(deviceID string) *Request {
	return a.req(http.MethodPost, "/v1/me/player/next", deviceQuery(deviceID), nil)
}

func (a *API) Previous(deviceID string) *Request {
	return a.req(http.MethodPost, "/v1/me/player/previous", deviceQuery(deviceID), nil)
}

func (a *API) Seek(deviceID string, positionMs int) *Request {
	q := url.Values{"position_ms": {strconv.Itoa(positionMs)}}
	if deviceID != "" {
		q.Set("device_id", deviceID)
	}
	return a.req(http.MethodPut, "/v1/me/player/seek", q, nil)
}

func (a *API) Volume(deviceID string, percent int) *Request {
	q := url.Values{"volume_percent": {strconv.Itoa(percent)}}
	if deviceID != "" {
		q.Set("device_id", deviceID)
	}
	return a.req(http.MethodPut, "/v1/me/player/volume", q, nil)
}

func (a *API) Shuffle(deviceID string, on bool) *Request {
	q := url.Values{"state": {strconv.FormatBool(on)}}
	if deviceID != "" {
		q.Set("device_id", deviceID)
	}
	return a.req(http.MethodPut, "/v1/me/player/shuffle", q, nil)
}

// Repeat sets the repeat state: "off", "track" or "context".
func (a *API) Repeat(deviceID, state string) *Request {
	q := url.Values{"state": {state}}
	if deviceID != "" {
		q.Set("device_id", deviceID)
	}
	return a.req(http.MethodPut, "/v1/me/player/repeat", q, nil)
}

func (a *API) Transfer(deviceID string) *Request {
	return a.req(http.MethodPut, "/v1/me/player", nil, map[string][]string{"device_ids": {deviceID}})
}

func (a *API) Devices() *Request {
	return a.req(http.MethodGet, "/v1/me/player/devices", nil, nil)
}

func (a *API) CheckSaved(trackID string) *Request {
	return a.req(http.MethodGet, "/v1/me/tracks/contains", url.Values{"ids": {trackID}}, nil)
}

func (a *API) Save(trackID string) *Request {
	return a.req(http.MethodPut, "/v1/me/tracks", url.Values{"ids": {trackID}}, nil)
}

func (a *API) Unsave(trackID string) *Request {
	return a.req(http.MethodDelete, "/v1/me/tracks", url.Values{"ids": {trackID}}, nil)
}

func (a *API) Playlists(offset int) *Request {
	q := url.Values{
		"limit":  {strconv.Itoa(PlaylistPageSize)},
		"offset": {strconv.Itoa(offset)},
	}
	return a.req(http.MethodGet, "/v1/me/playlists", q, nil)
}

func (a *API) PlaylistInfo(id string) *Request {
	return a.req(http.MethodGet, "/v1/playlists/"+url.PathEscape(id), url.Values{"fields": {"name,description"}}, nil)
}

// Image fetches an arbitrary cover URL over the transient connection.
func Image(imageURL string) *Request {
	return &Request{Method: http.MethodGet, URL: imageURL, Image: true}
}
