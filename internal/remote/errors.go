package remote

import "errors"

var (
	ErrAuth      = errors.New("remote: auth failed")
	ErrTransport = errors.New("remote: no response")
	ErrDevice    = errors.New("remote: device missing")
	ErrServer    = errors.New("remote: server error")
	ErrParse     = errors.New("remote: malformed response")
)

func IsAuth(err error) bool      { return errors.Is(err, ErrAuth) }
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }
func IsDevice(err error) bool    { return errors.Is(err, ErrDevice) }
func IsServer(err error) bool    { return errors.Is(err, ErrServer) }
func IsParse(err error) bool     { return errors.Is(err, ErrParse) }
