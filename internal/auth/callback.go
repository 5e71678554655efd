package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"
)

// CallbackResult is what the redirect carried.
type CallbackResult struct {
	Code  string
	State string
	Error string
}

// CallbackServer receives the OAuth redirect on the loopback address named
// by the redirect URI.
type CallbackServer struct {
	server   *http.Server
	listener net.Listener
	results  chan CallbackResult
	done     chan struct{}
}

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>knob</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>%s</h1>
<p>%s</p>
</body>
</html>`

// StartCallbackServer listens on the host and path of redirectURI.
func StartCallbackServer(redirectURI string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("redirect uri %q has no host", redirectURI)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", u.Host, err)
	}

	cs := &CallbackServer{
		listener: listener,
		results:  make(chan CallbackResult, 1),
		done:     make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := CallbackResult{Code: q.Get("code"), State: q.Get("state"), Error: q.Get("error")}

		w.Header().Set("Content-Type", "text/html")
		if res.Code != "" {
			fmt.Fprintf(w, callbackPage, "Authorization Successful!", "You can close this window and return to knob.")
		} else {
			fmt.Fprintf(w, callbackPage, "Authorization Failed", "No code received. Please try again.")
		}

		select {
		case cs.results <- res:
		default:
		}
	})
	cs.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		_ = cs.server.Serve(listener)
		close(cs.done)
	}()
	return cs, nil
}

// Addr is the address actually bound.
func (cs *CallbackServer) Addr() string { return cs.listener.Addr().String() }

// Wait blocks until the redirect arrives or ctx ends.
func (cs *CallbackServer) Wait(ctx context.Context) (CallbackResult, error) {
	select {
	case res := <-cs.results:
		return res, nil
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}

func (cs *CallbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = cs.server.Shutdown(ctx)
	<-cs.done
}

// OpenBrowser opens the given URL in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
