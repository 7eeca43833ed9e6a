package transport

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// AuthMethod is the shared, thread-safe token contract the transport
// signs requests with. It wraps an oauth2.TokenSource; the engine
// only ever calls Token()/Reset(), never the authorization-code
// exchange.
type AuthMethod struct {
	source oauth2.TokenSource

	mu      sync.Mutex
	current *oauth2.Token

	group singleflight.Group
}

// NewAuthMethod wraps a token source; internal/adapters passes a
// client-credentials token source built from the endpoint's config.
func NewAuthMethod(source oauth2.TokenSource) *AuthMethod {
	return &AuthMethod{source: source}
}

// Token returns a current bearer token, refreshing if necessary. A
// singleflight group coalesces concurrent refreshes across every
// DownloadJob sharing this AuthMethod, preventing a thundering herd
// after expiry.
func (a *AuthMethod) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	tok := a.current
	a.mu.Unlock()

	if tok != nil && tok.Valid() {
		return tok.AccessToken, nil
	}

	v, err, _ := a.group.Do("refresh", func() (any, error) {
		a.mu.Lock()
		tok := a.current
		a.mu.Unlock()
		if tok != nil && tok.Valid() {
			return tok, nil
		}

		fresh, err := a.source.Token()
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		a.current = fresh
		a.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return "", err
	}

	return v.(*oauth2.Token).AccessToken, nil
}

// Reset forces the next Token() call to refresh.
func (a *AuthMethod) Reset() {
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
}

// CurrentExpired reports whether the bound access token's own exp
// claim has passed, without verifying its signature (the engine never
// issues these tokens, only relays them; signature trust is the
// origin's problem). Used to tell a genuinely expired bearer token
// apart from a 401 the origin returned for some other reason (revoked
// token, insufficient scope) while the claims still looked valid.
func (a *AuthMethod) CurrentExpired() bool {
	a.mu.Lock()
	tok := a.current
	a.mu.Unlock()

	if tok == nil || tok.AccessToken == "" {
		return true
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tok.AccessToken, claims); err != nil {
		// Not a parseable JWT (opaque bearer token); fall back to
		// oauth2's own expiry bookkeeping.
		return !tok.Valid()
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return !tok.Valid()
	}
	return time.Now().After(exp.Time)
}
