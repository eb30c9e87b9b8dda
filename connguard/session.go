package connguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

// KeyProvider retrieves the keys used to verify session tokens.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a static verification key.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// Renewer obtains a fresh session token.
type Renewer interface {
	Renew(ctx context.Context) (string, error)
}

// RenewerFunc adapts a function to the Renewer interface.
type RenewerFunc func(ctx context.Context) (string, error)

// Renew calls f.
func (f RenewerFunc) Renew(ctx context.Context) (string, error) {
	return f(ctx)
}

// SessionConfig configures a session probe.
type SessionConfig struct {
	// Issuer is the expected token issuer (iss claim). Empty skips the check.
	Issuer string

	// Audience is the expected token audience (aud claim). Empty skips the check.
	Audience string

	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration

	// Methods restricts accepted signing algorithms.
	// Default: HS256, HS384, HS512
	Methods []string

	// Clock supplies the verification time.
	// Default: the wall clock
	Clock clock.Clock
}

// SessionProbe treats a signed JWT session as the dependency. The session is
// reachable while its token verifies and has not expired; Reconnect asks the
// Renewer for a new token.
type SessionProbe struct {
	config  SessionConfig
	keys    KeyProvider
	renewer Renewer

	mu    sync.RWMutex
	token string
}

// NewSessionProbe creates a session probe holding token. renewer may be nil,
// in which case Reconnect only re-verifies the current token.
func NewSessionProbe(token string, keys KeyProvider, renewer Renewer, config SessionConfig) *SessionProbe {
	if len(config.Methods) == 0 {
		config.Methods = []string{"HS256", "HS384", "HS512"}
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &SessionProbe{
		config:  config,
		keys:    keys,
		renewer: renewer,
		token:   token,
	}
}

// Token returns the current session token.
func (p *SessionProbe) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// IsReachable reports whether the current token verifies.
func (p *SessionProbe) IsReachable(ctx context.Context) bool {
	return p.Verify(ctx, p.Token()) == nil
}

// Reconnect renews the session and keeps the new token if it verifies.
func (p *SessionProbe) Reconnect(ctx context.Context) bool {
	if p.renewer == nil {
		return p.IsReachable(ctx)
	}

	token, err := p.renewer.Renew(ctx)
	if err != nil {
		return false
	}
	if err := p.Verify(ctx, token); err != nil {
		return false
	}

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	return true
}

// Verify checks a token against the probe's keys and claims.
func (p *SessionProbe) Verify(ctx context.Context, tokenString string) error {
	if tokenString == "" {
		return ErrSessionInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(p.config.Methods),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.config.Clock.Now),
	}
	if p.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(p.config.Leeway))
	}
	if p.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.config.Issuer))
	}
	if p.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.config.Audience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return p.keys.GetKey(ctx, kid)
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	if !token.Valid {
		return ErrSessionInvalid
	}
	return nil
}
