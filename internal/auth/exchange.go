package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tunez/knob/internal/remote"
	"github.com/tunez/knob/internal/retry"
)

type Grant int

const (
	GrantCode Grant = iota
	GrantRefresh
)

func (g Grant) String() string {
	if g == GrantRefresh {
		return "refresh_token"
	}
	return "authorization_code"
}

// ExchangeError is a token endpoint answer other than 2xx.
type ExchangeError struct {
	Status int
	Grant  Grant
	Disp   retry.Disposition
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange (%s): status %d", e.Grant, e.Status)
}

func (e *ExchangeError) Unwrap() error { return remote.ErrAuth }

// Revoked reports a refresh token the service no longer accepts.
func (e *ExchangeError) Revoked() bool { return e.Disp == retry.Revoked }

// Unauthorized reports a rejected client or credential that may succeed on a
// later attempt.
func (e *ExchangeError) Unauthorized() bool { return e.Disp == retry.ReauthRequired }

// Exchanger performs token exchanges over a Transport.
type Exchanger struct {
	Transport remote.Transport
	Config    *oauth2.Config
}

// NewExchanger builds an exchanger for the accounts service at accountsURL.
func NewExchanger(t remote.Transport, accountsURL, clientID, redirectURI string, scopes []string) *Exchanger {
	return &Exchanger{Transport: t, Config: OAuthConfig(accountsURL, clientID, redirectURI, scopes)}
}

// OAuthConfig describes the public PKCE client.
func OAuthConfig(accountsURL, clientID, redirectURI string, scopes []string) *oauth2.Config {
	base := strings.TrimRight(accountsURL, "/")
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/authorize",
			TokenURL:  base + "/api/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Exchange trades an authorization code (with its PKCE verifier) or a
// refresh token for a new token. A failure without a response wraps
// remote.ErrTransport; a non-2xx answer is an *ExchangeError.
func (x *Exchanger) Exchange(ctx context.Context, grant Grant, value, verifier string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", grant.String())
	form.Set("client_id", x.Config.ClientID)
	switch grant {
	case GrantCode:
		form.Set("code", value)
		form.Set("redirect_uri", x.Config.RedirectURL)
		form.Set("code_verifier", verifier)
	case GrantRefresh:
		form.Set("refresh_token", value)
	}

	req := &remote.Request{
		Method: http.MethodPost,
		URL:    x.Config.Endpoint.TokenURL,
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Body:   []byte(form.Encode()),
	}
	resp, err := x.Transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if disp := retry.ClassifyGrant(resp.Status, grant == GrantRefresh); disp != retry.Success {
		return nil, &ExchangeError{Status: resp.Status, Grant: grant, Disp: disp}
	}

	var tok oauth2.Token
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %v: %w", err, remote.ErrParse)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("decode token: missing access_token: %w", remote.ErrParse)
	}
	return &tok, nil
}

// Lifetime converts the declared expires_in of tok.
func Lifetime(tok *oauth2.Token) time.Duration {
	return time.Duration(tok.ExpiresIn) * time.Second
}
