package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens(NewMemoryStore(time.Hour))
	ctx := WithID(context.Background(), "sid-1")

	if tok, err := tokens.Get(ctx, CoachTokenKey); err != nil || tok != "" {
		t.Fatalf("expected empty token, got %q err=%v", tok, err)
	}
	if err := tokens.Set(ctx, CoachTokenKey, "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if tok, _ := tokens.Get(ctx, CoachTokenKey); tok != "abc" {
		t.Fatalf("expected abc, got %q", tok)
	}
	// other roles are independent
	if tok, _ := tokens.Get(ctx, AdminTokenKey); tok != "" {
		t.Fatalf("expected no admin token, got %q", tok)
	}
	if err := tokens.Clear(ctx, CoachTokenKey); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if tok, _ := tokens.Get(ctx, CoachTokenKey); tok != "" {
		t.Fatalf("expected cleared token, got %q", tok)
	}
}

func TestTokens_NoSession(t *testing.T) {
	tokens := NewTokens(NewMemoryStore(time.Hour))
	if tok, err := tokens.Get(context.Background(), ResidentTokenKey); tok != "" || err != nil {
		t.Fatalf("expected empty read without session, got %q %v", tok, err)
	}
	if err := tokens.Set(context.Background(), ResidentTokenKey, "x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestMemoryStore_IdleExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_ = store.Set(ctx, "s", "k", []byte("v"))

	now = now.Add(59 * time.Second)
	if _, err := store.Get(ctx, "s", "k"); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}
	now = now.Add(61 * time.Second)
	if _, err := store.Get(ctx, "s", "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryStore_Acquire(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	release, ok, err := store.Acquire(ctx, "s", "submit:coach", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := store.Acquire(ctx, "s", "submit:coach", time.Minute); ok {
		t.Fatal("expected second acquire to fail while held")
	}
	if _, ok, _ := store.Acquire(ctx, "other", "submit:coach", time.Minute); !ok {
		t.Fatal("expected other sessions to be unaffected")
	}
	release()
	release()
	if _, ok, _ := store.Acquire(ctx, "s", "submit:coach", time.Minute); !ok {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestManager_IssuesAndReusesCookie(t *testing.T) {
	m := Manager{CookieName: "sid", TTL: time.Hour}
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IDFrom(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "" || cookies[0].Value != seen {
		t.Fatalf("expected issued cookie matching context id, got %v (ctx %q)", cookies, seen)
	}
	if !cookies[0].HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	first := seen
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: first})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != first {
		t.Fatalf("expected session id to be reused, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "forged" {
		t.Fatal("expected non-uuid session ids to be replaced")
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	sid := "test-" + time.Now().Format("150405.000000")

	if _, err := store.Get(ctx, sid, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Set(ctx, sid, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := store.Get(ctx, sid, "k"); err != nil || string(v) != "v" {
		t.Fatalf("expected v, got %q err=%v", v, err)
	}
	release, ok, err := store.Acquire(ctx, sid, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := store.Acquire(ctx, sid, "lock", time.Minute); ok {
		t.Fatal("expected lock to be held")
	}
	release()
	if err := store.Delete(ctx, sid, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
