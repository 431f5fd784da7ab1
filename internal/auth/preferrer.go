package auth

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
)

// Preferrer picks between application and delegated tokens for outbound
// Graph requests. Application tokens are tried first (no per-user
// delegation needed); delegated is the fallback. Once a scope fails, the
// working choice is remembered for the session so a known-bad path is not
// retried in a tight loop. Reset clears the memory at the start of a new
// discovery phase so recovered credentials are picked up.
type Preferrer struct {
	provider Provider
	logger   *log.Logger

	mu     sync.Mutex
	sticky Scope // empty until a scope has failed
}

// NewPreferrer wraps a Provider with application-first selection.
func NewPreferrer(provider Provider, logger *log.Logger) *Preferrer {
	if logger == nil {
		logger = log.New(os.Stderr, "[auth] ", log.LstdFlags)
	}
	return &Preferrer{provider: provider, logger: logger}
}

// BearerToken implements graph.TokenSource.
func (p *Preferrer) BearerToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	sticky := p.sticky
	p.mu.Unlock()

	if sticky != "" {
		tok, err := p.provider.Token(ctx, sticky)
		if err != nil {
			return "", fmt.Errorf("sticky %s token failed: %w", sticky, err)
		}
		return tok.AccessToken, nil
	}

	tok, appErr := p.provider.Token(ctx, ScopeApplication)
	if appErr == nil {
		return tok.AccessToken, nil
	}

	p.logger.Printf("Application token unavailable, falling back to delegated: %v", appErr)

	tok, delErr := p.provider.Token(ctx, ScopeDelegated)
	if delErr != nil {
		return "", fmt.Errorf("no usable token (application: %v): %w", appErr, delErr)
	}

	// Delegated worked where application did not; stick with it for the
	// rest of the session.
	p.mu.Lock()
	p.sticky = ScopeDelegated
	p.mu.Unlock()

	return tok.AccessToken, nil
}

// Reset clears the sticky choice. The engine calls this at the start of
// each discovery sweep so a fresh application token is always attempted.
func (p *Preferrer) Reset() {
	p.mu.Lock()
	p.sticky = ""
	p.mu.Unlock()
}

// Invalidate drops cached tokens for both scopes after the API rejected
// one; the next request re-authenticates from scratch.
func (p *Preferrer) Invalidate() {
	p.provider.Invalidate(ScopeApplication)
	p.provider.Invalidate(ScopeDelegated)
	p.Reset()
}
