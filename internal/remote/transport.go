package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// StatusNoResponse is the status reported when a request never got an answer.
const StatusNoResponse = -1

const defaultTimeout = 5 * time.Second

// maxBodyBytes bounds how much of a response is read. Cover images are the
// largest payloads.
const maxBodyBytes = 4 << 20

// Request is one blocking HTTP call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// Image requests go over a transient connection instead of the shared
	// session connection.
	Image bool
}

// Response is the raw answer to a Request.
type Response struct {
	Status int
	Body   []byte
}

// Transport performs a single blocking request. A non-nil error means there
// was no response at all and wraps ErrTransport.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// StatusOf returns the response status, or StatusNoResponse when the request
// failed at the transport level.
func StatusOf(resp *Response, err error) int {
	if err != nil || resp == nil {
		return StatusNoResponse
	}
	return resp.Status
}

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	Timeout time.Duration
	Logger  *slog.Logger
	// Client overrides the session client, mainly for tests.
	Client *http.Client
}

// HTTPTransport reuses one keep-alive client for session calls and uses a
// separate client without keep-alives for image downloads.
type HTTPTransport struct {
	session *http.Client
	images  *http.Client
	logger  *slog.Logger
}

var _ Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	session := opts.Client
	if session == nil {
		session = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        1,
				MaxIdleConnsPerHost: 1,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	images := &http.Client{
		Timeout:   opts.Timeout,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	if opts.Client != nil {
		images = opts.Client
	}
	return &HTTPTransport{session: session, images: images, logger: opts.Logger}
}

func (t *HTTPTransport) Do(ctx context.Context, r *Request) (*Response, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", ErrTransport)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	client := t.session
	if r.Image {
		client = t.images
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		t.logger.Debug("request failed", slog.String("method", r.Method), slog.String("url", r.URL), slog.Any("err", err))
		return nil, fmt.Errorf("%s %s: %v: %w", r.Method, r.URL, err, ErrTransport)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, ErrTransport)
	}
	t.logger.Debug("request done",
		slog.String("method", r.Method),
		slog.String("url", r.URL),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)))
	return &Response{Status: resp.StatusCode, Body: data}, nil
}
