// Package retry turns a response status into the single disposition every
// command handler reacts to. No other package looks at raw status codes.
package retry

import (
	"net/http"

	"github.com/tunez/knob/internal/queue"
	"github.com/tunez/knob/internal/remote"
)

type Disposition int

const (
	Success Disposition = iota
	// ReauthRequired: the access token was rejected.
	ReauthRequired
	// DeviceMissing: playback control hit a device that no longer exists.
	DeviceMissing
	// TransportError: no response at all.
	TransportError
	// ServerError: any other 4xx/5xx.
	ServerError
	// Revoked: the token endpoint refused a refresh token for good.
	Revoked
	Unhandled
)

func (d Disposition) String() string {
	switch d {
	case Success:
		return "Success"
	case ReauthRequired:
		return "ReauthRequired"
	case DeviceMissing:
		return "DeviceMissing"
	case TransportError:
		return "TransportError"
	case ServerError:
		return "ServerError"
	case Revoked:
		return "Revoked"
	case Unhandled:
		return "Unhandled"
	default:
		return "Unknown"
	}
}

// Err maps a failed disposition onto the error taxonomy.
func (d Disposition) Err() error {
	switch d {
	case ReauthRequired, Revoked:
		return remote.ErrAuth
	case DeviceMissing:
		return remote.ErrDevice
	case TransportError:
		return remote.ErrTransport
	case ServerError, Unhandled:
		return remote.ErrServer
	default:
		return nil
	}
}

// Classify decides what a response to an action of kind k means.
func Classify(status int, k queue.Kind) Disposition {
	switch {
	case status < 0:
		return TransportError
	case status >= 200 && status < 300:
		return Success
	case status == http.StatusUnauthorized:
		return ReauthRequired
	case status == http.StatusNotFound && k.PlaybackControl():
		return DeviceMissing
	case status >= 400 && status < 600:
		return ServerError
	default:
		return Unhandled
	}
}

// ClassifyGrant decides what a token endpoint answer means. refresh is set
// for refresh-token grants, where a 400 means the token was revoked.
func ClassifyGrant(status int, refresh bool) Disposition {
	switch {
	case status < 0:
		return TransportError
	case status >= 200 && status < 300:
		return Success
	case status == http.StatusUnauthorized:
		return ReauthRequired
	case status == http.StatusBadRequest && refresh:
		return Revoked
	case status >= 400 && status < 600:
		return ServerError
	default:
		return Unhandled
	}
}
