// Package auth acquires Microsoft identity platform tokens for Graph calls.
//
// Two scopes are supported: application (client credentials, tenant-wide)
// and delegated (user context via refresh token). Tokens are cached as
// immutable (token, expiry) values and re-requested near expiry; callers
// never mutate shared token state.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

// Scope selects which identity a token represents.
type Scope string

const (
	// ScopeApplication is the tenant-wide app identity (client credentials).
	ScopeApplication Scope = "application"
	// ScopeDelegated is the user-context identity (refresh token flow).
	ScopeDelegated Scope = "delegated"
)

// graphDefaultScope requests all statically-consented Graph permissions.
const graphDefaultScope = "https://graph.microsoft.com/.default"

// expiryMargin is how long before the recorded expiry a cached token is
// considered stale. Graph rejects tokens that expire mid-request.
const expiryMargin = 2 * time.Minute

// Token is an immutable bearer token with its expiry.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Valid reports whether the token can still be used, with margin.
func (t Token) Valid() bool {
	return t.AccessToken != "" && time.Now().Add(expiryMargin).Before(t.Expiry)
}

// Provider supplies tokens on demand. The sync engine treats it as an
// opaque function; see Preferrer for application/delegated selection.
type Provider interface {
	// Token returns a valid token for the scope, refreshing if needed.
	Token(ctx context.Context, scope Scope) (Token, error)

	// Invalidate drops the cached token for a scope so the next call
	// re-requests. Called after the Graph API rejects a token.
	Invalidate(scope Scope)
}

// Config holds the Azure AD application registration.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// RefreshToken enables the delegated scope. Empty disables it.
	RefreshToken string
}

// provider implements Provider against the Microsoft identity platform.
type provider struct {
	appSource oauth2.TokenSource
	delegated *oauth2.Config
	refresh   string

	mu     sync.Mutex
	cached map[Scope]Token
}

// NewProvider creates a Provider for the given app registration.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("tenant_id and client_id are required")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     microsoft.AzureADEndpoint(cfg.TenantID).TokenURL,
		Scopes:       []string{graphDefaultScope},
	}

	p := &provider{
		appSource: cc.TokenSource(context.Background()),
		refresh:   cfg.RefreshToken,
		cached:    make(map[Scope]Token),
	}

	if cfg.RefreshToken != "" {
		p.delegated = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(cfg.TenantID),
			Scopes:       []string{graphDefaultScope, "offline_access"},
		}
	}

	return p, nil
}

// Token implements Provider.Token.
func (p *provider) Token(ctx context.Context, scope Scope) (Token, error) {
	p.mu.Lock()
	if tok, ok := p.cached[scope]; ok && tok.Valid() {
		p.mu.Unlock()
		return tok, nil
	}
	p.mu.Unlock()

	tok, err := p.fetch(ctx, scope)
	if err != nil {
		return Token{}, err
	}

	p.mu.Lock()
	p.cached[scope] = tok
	p.mu.Unlock()

	return tok, nil
}

// Invalidate implements Provider.Invalidate.
func (p *provider) Invalidate(scope Scope) {
	p.mu.Lock()
	delete(p.cached, scope)
	p.mu.Unlock()
}

// fetch performs the actual token request for a scope.
func (p *provider) fetch(ctx context.Context, scope Scope) (Token, error) {
	switch scope {
	case ScopeApplication:
		t, err := p.appSource.Token()
		if err != nil {
			return Token{}, fmt.Errorf("failed to acquire application token: %w", err)
		}
		return Token{AccessToken: t.AccessToken, Expiry: t.Expiry}, nil

	case ScopeDelegated:
		if p.delegated == nil {
			return Token{}, fmt.Errorf("delegated scope not configured (no refresh token)")
		}
		src := p.delegated.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refresh})
		t, err := src.Token()
		if err != nil {
			return Token{}, fmt.Errorf("failed to refresh delegated token: %w", err)
		}
		return Token{AccessToken: t.AccessToken, Expiry: t.Expiry}, nil

	default:
		return Token{}, fmt.Errorf("unknown token scope %q", scope)
	}
}
