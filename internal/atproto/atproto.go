// Package atproto is a minimal XRPC client for the Bluesky endpoints the
// moderation pipeline consumes.
package atproto

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CollectionPost     = "app.bsky.feed.post"
	CollectionList     = "app.bsky.graph.list"
	CollectionListItem = "app.bsky.graph.listitem"

	// MaxPageSize is the largest page the search and list endpoints accept.
	MaxPageSize = 100
)

var ErrMissingCredentials = errors.New("bluesky identifier and app password are required")

// Session is an authenticated account. It is passed explicitly to every call.
type Session struct {
	AccessJWT  string `json:"accessJwt"`
	RefreshJWT string `json:"refreshJwt"`
	DID        string `json:"did"`
	Handle     string `json:"handle"`
}

// Expired reports whether the access token's exp claim is in the past. Tokens
// that cannot be decoded are treated as live and left for the server to judge.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.AccessJWT == "" {
		return true
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessJWT, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// CheckSession returns an error wrapping moderation.ErrAuth when sess cannot be
// used for a call.
func CheckSession(sess *Session) error {
	if sess == nil || sess.AccessJWT == "" || sess.DID == "" {
		return fmt.Errorf("%w: no session", moderation.ErrAuth)
	}
	if sess.Expired(time.Now()) {
		return fmt.Errorf("%w: session expired", moderation.ErrAuth)
	}
	return nil
}

// APIError is a non-2xx XRPC response.
type APIError struct {
	NSID    string `json:"-"`
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: status %d", e.NSID, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s: %s", e.NSID, e.Status, e.Code, e.Message)
}

// IsAuth reports whether the server rejected the credentials or token.
func (e *APIError) IsAuth() bool {
	if e.Status == http.StatusUnauthorized {
		return true
	}
	switch e.Code {
	case "ExpiredToken", "InvalidToken", "AuthenticationRequired", "AuthFactorTokenRequired":
		return true
	}
	return false
}

// Is lets errors.Is(err, moderation.ErrAuth) match authentication failures.
func (e *APIError) Is(target error) bool {
	return target == moderation.ErrAuth && e.IsAuth()
}
