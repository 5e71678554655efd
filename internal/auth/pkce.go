package auth

import (
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// PKCE is one pending authorization: the verifier that must accompany the
// code exchange and the state echoed back by the redirect.
type PKCE struct {
	Verifier string
	State    string
}

// NewPKCE draws a 32-byte random verifier, base64url encoded.
func NewPKCE() PKCE {
	return PKCE{Verifier: oauth2.GenerateVerifier(), State: uuid.NewString()}
}

// Challenge is the S256 code challenge derived from the verifier.
func (p PKCE) Challenge() string {
	return oauth2.S256ChallengeFromVerifier(p.Verifier)
}

// AuthURL is the page the user opens to grant access.
func (p PKCE) AuthURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL(p.State, oauth2.S256ChallengeOption(p.Verifier))
}
