package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	memorystorage "github.com/fitgram/internal/storage/memory"
)

func TestSessionAuth(t *testing.T) {
	store := memorystorage.New()
	if err := store.SetSession(context.Background(), "good-token", "user-42", time.Hour); err != nil {
		t.Fatalf("set session: %v", err)
	}

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
	})
	h := SessionAuth(store)(next)

	// Header token.
	req := httptest.NewRequest("GET", "/api/conversations", nil)
	req.Header.Set("X-Session-Token", "good-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("header token: status %d", rec.Code)
	}
	if gotUserID != "user-42" {
		t.Errorf("user id = %q, want user-42", gotUserID)
	}

	// Query token (websocket handshake path).
	gotUserID = ""
	req = httptest.NewRequest("GET", "/ws?session_token=good-token", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotUserID != "user-42" {
		t.Errorf("query token: status %d, user %q", rec.Code, gotUserID)
	}

	// Missing and bogus tokens are rejected before the handler runs.
	for _, target := range []string{"/api/conversations", "/ws?session_token=bogus"} {
		gotUserID = ""
		req = httptest.NewRequest("GET", target, nil)
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status %d, want 401", target, rec.Code)
		}
		if gotUserID != "" {
			t.Errorf("%s: handler ran without a session", target)
		}
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3, 50*time.Millisecond)
	for i := 0; i < 3; i++ {
		if !rl.allow("k") {
			t.Fatalf("request %d rejected below the limit", i)
		}
	}
	if rl.allow("k") {
		t.Error("request above the limit allowed")
	}
	if !rl.allow("other") {
		t.Error("separate key throttled")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.allow("k") {
		t.Error("request rejected after the window slid")
	}
}

func TestRecoverJSON(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest("GET", "/api/conversations", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
}
