package auth

import (
	"context"
	"fmt"
	"log"
	"testing"
	"time"
)

// fakeProvider scripts per-scope outcomes and counts requests.
type fakeProvider struct {
	appErr  error
	delErr  error
	counts  map[Scope]int
	invalid map[Scope]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		counts:  make(map[Scope]int),
		invalid: make(map[Scope]int),
	}
}

func (f *fakeProvider) Token(ctx context.Context, scope Scope) (Token, error) {
	f.counts[scope]++
	switch scope {
	case ScopeApplication:
		if f.appErr != nil {
			return Token{}, f.appErr
		}
	case ScopeDelegated:
		if f.delErr != nil {
			return Token{}, f.delErr
		}
	}
	return Token{AccessToken: string(scope) + "-token", Expiry: time.Now().Add(time.Hour)}, nil
}

func (f *fakeProvider) Invalidate(scope Scope) {
	f.invalid[scope]++
}

func TestPreferrerAppFirst(t *testing.T) {
	fake := newFakeProvider()
	p := NewPreferrer(fake, log.New(log.Writer(), "[test] ", 0))

	tok, err := p.BearerToken(context.Background())
	if err != nil {
		t.Fatalf("BearerToken failed: %v", err)
	}
	if tok != "application-token" {
		t.Errorf("expected application token, got %q", tok)
	}
	if fake.counts[ScopeDelegated] != 0 {
		t.Errorf("delegated should not be tried when application works")
	}
}

func TestPreferrerFallbackIsSticky(t *testing.T) {
	fake := newFakeProvider()
	fake.appErr = fmt.Errorf("app registration disabled")
	p := NewPreferrer(fake, log.New(log.Writer(), "[test] ", 0))

	for i := 0; i < 3; i++ {
		tok, err := p.BearerToken(context.Background())
		if err != nil {
			t.Fatalf("BearerToken %d failed: %v", i, err)
		}
		if tok != "delegated-token" {
			t.Errorf("expected delegated token, got %q", tok)
		}
	}

	// Application tried once, then the delegated choice sticks.
	if fake.counts[ScopeApplication] != 1 {
		t.Errorf("expected 1 application attempt, got %d", fake.counts[ScopeApplication])
	}
	if fake.counts[ScopeDelegated] != 3 {
		t.Errorf("expected 3 delegated requests, got %d", fake.counts[ScopeDelegated])
	}
}

func TestPreferrerResetRetriesApplication(t *testing.T) {
	fake := newFakeProvider()
	fake.appErr = fmt.Errorf("transient outage")
	p := NewPreferrer(fake, log.New(log.Writer(), "[test] ", 0))

	if _, err := p.BearerToken(context.Background()); err != nil {
		t.Fatalf("BearerToken failed: %v", err)
	}

	// Outage recovers; a new discovery phase should try application again.
	fake.appErr = nil
	p.Reset()

	tok, err := p.BearerToken(context.Background())
	if err != nil {
		t.Fatalf("BearerToken after reset failed: %v", err)
	}
	if tok != "application-token" {
		t.Errorf("expected application token after reset, got %q", tok)
	}
}

func TestPreferrerBothFail(t *testing.T) {
	fake := newFakeProvider()
	fake.appErr = fmt.Errorf("app down")
	fake.delErr = fmt.Errorf("refresh token revoked")
	p := NewPreferrer(fake, log.New(log.Writer(), "[test] ", 0))

	if _, err := p.BearerToken(context.Background()); err == nil {
		t.Error("expected error when both scopes fail")
	}
}

func TestPreferrerInvalidateClearsBoth(t *testing.T) {
	fake := newFakeProvider()
	p := NewPreferrer(fake, log.New(log.Writer(), "[test] ", 0))

	p.Invalidate()

	if fake.invalid[ScopeApplication] != 1 || fake.invalid[ScopeDelegated] != 1 {
		t.Errorf("expected both scopes invalidated, got %v", fake.invalid)
	}
}
