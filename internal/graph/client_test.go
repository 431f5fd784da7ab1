package graph

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// staticTokens satisfies TokenSource with a fixed token.
type staticTokens struct{ token string }

func (s staticTokens) BearerToken(ctx context.Context) (string, error) {
	return s.token, nil
}

// newTestClient wires a Client against an httptest server.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(staticTokens{token: "test-token"}, &Config{
		BaseURL: srv.URL,
		Logger:  log.New(log.Writer(), "[test] ", 0),
	})
	return client, srv
}

func TestGetTaskConditional(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if r.Header.Get("If-None-Match") == `W/"etag-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_ = json.NewEncoder(w).Encode(PlannerTask{ID: "p1", Title: "Remote", ETag: `W/"etag-1"`})
	})

	pt, err := client.GetTask(context.Background(), "p1", "")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if pt.ETag != `W/"etag-1"` {
		t.Errorf("expected etag from response, got %q", pt.ETag)
	}

	_, err = client.GetTask(context.Background(), "p1", `W/"etag-1"`)
	if !errors.Is(err, ErrNotModified) {
		t.Errorf("expected ErrNotModified for matching etag, got %v", err)
	}
}

func TestNewClientLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: 3 * time.Second}

	c := NewClient(staticTokens{token: "t"}, &Config{
		HTTPClient: shared,
		Timeout:    30 * time.Second,
	})

	if shared.Timeout != 3*time.Second {
		t.Errorf("caller's client timeout changed to %v", shared.Timeout)
	}
	if c.http == shared {
		t.Error("client should not retain the caller's http.Client")
	}
	if c.http.Timeout != 30*time.Second {
		t.Errorf("client timeout = %v, want 30s", c.http.Timeout)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetTask(context.Background(), "gone", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTaskPrecondition(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if r.Header.Get("If-Match") != `W/"stale"` {
			t.Errorf("expected If-Match header, got %q", r.Header.Get("If-Match"))
		}
		w.WriteHeader(http.StatusPreconditionFailed)
	})

	pct := 50
	_, err := client.UpdateTask(context.Background(), "p1", `W/"stale"`, &TaskPayload{PercentComplete: &pct})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestUpdateTaskReturnsRepresentation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("expected Prefer header, got %q", r.Header.Get("Prefer"))
		}
		_ = json.NewEncoder(w).Encode(PlannerTask{ID: "p1", ETag: `W/"etag-2"`})
	})

	pt, err := client.UpdateTask(context.Background(), "p1", `W/"etag-1"`, &TaskPayload{Title: "New"})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if pt.ETag != `W/"etag-2"` {
		t.Errorf("expected fresh etag, got %q", pt.ETag)
	}
}

func TestDeleteTaskIdempotent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	// Deleting an already-deleted task is not an error.
	if err := client.DeleteTask(context.Background(), "gone", `W/"etag"`); err != nil {
		t.Errorf("expected nil for delete of missing task, got %v", err)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetTask(context.Background(), "p1", "")
	if !IsTransient(err) {
		t.Errorf("expected transient error for 503, got %v", err)
	}
}

func TestUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetTask(context.Background(), "p1", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
