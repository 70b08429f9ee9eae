// Package auth carries the delegated mailbox credential through a request.
//
// The credential is issued by an external identity provider. This package
// never refreshes, caches or persists it.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// ErrMissingCredential indicates no access token was supplied.
var ErrMissingCredential = errors.New("missing access token")

const bearerPrefix = "Bearer "

// Credential is an opaque bearer token scoped to one mailbox.
type Credential struct {
	accessToken string
}

// NewCredential wraps an access token as given. Only an empty token is
// rejected: validity is for the mail provider to judge.
func NewCredential(accessToken string) (Credential, error) {
	if accessToken == "" {
		return Credential{}, ErrMissingCredential
	}

	return Credential{accessToken: accessToken}, nil
}

// FromRequest reads the credential from the Authorization bearer header.
func FromRequest(r *http.Request) (Credential, error) {
	return FromHeader(r.Header)
}

// FromHeader reads the credential from the Authorization bearer header in h.
func FromHeader(h http.Header) (Credential, error) {
	v := h.Get("Authorization")
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return Credential{}, ErrMissingCredential
	}

	return NewCredential(strings.TrimSpace(v[len(bearerPrefix):]))
}

// IsZero reports whether the credential holds no token.
func (c Credential) IsZero() bool {
	return c.accessToken == ""
}

// AccessToken returns the raw token.
func (c Credential) AccessToken() string {
	return c.accessToken
}

// OAuthToken returns the credential as a bearer oauth2 token.
func (c Credential) OAuthToken() (*oauth2.Token, error) {
	if c.IsZero() {
		return nil, ErrMissingCredential
	}

	return &oauth2.Token{AccessToken: c.accessToken, TokenType: "Bearer"}, nil
}

// TokenSource returns a source that always yields this credential.
func (c Credential) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.accessToken, TokenType: "Bearer"})
}

// String masks all but the last four characters.
func (c Credential) String() string {
	return maskLeft(c.accessToken)
}

func maskLeft(s string) string {
	rs := []rune(s)
	for i := 0; i < len(rs)-4; i++ {
		rs[i] = 'X'
	}
	return string(rs)
}
