package session

import (
	"context"
	"errors"
)

// Storage keys, one per role. They match the names the browser build used
// for local storage so operators can recognise them in Redis.
const (
	AdminTokenKey    = "admin_token"
	CoachTokenKey    = "coach_token"
	ResidentTokenKey = "token"
)

// TokenStore holds one bearer token per role for the current browser.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, token string) error
	Clear(ctx context.Context, key string) error
}

// Tokens is the TokenStore backed by a session Store. A missing token or a
// missing session reads as "".
type Tokens struct {
	store Store
}

func NewTokens(store Store) *Tokens {
	return &Tokens{store: store}
}

func (t *Tokens) Get(ctx context.Context, key string) (string, error) {
	sid, ok := IDFrom(ctx)
	if !ok {
		return "", nil
	}
	v, err := t.store.Get(ctx, sid, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (t *Tokens) Set(ctx context.Context, key, token string) error {
	sid, ok := IDFrom(ctx)
	if !ok {
		return ErrNoSession
	}
	return t.store.Set(ctx, sid, key, []byte(token))
}

func (t *Tokens) Clear(ctx context.Context, key string) error {
	sid, ok := IDFrom(ctx)
	if !ok {
		return nil
	}
	return t.store.Delete(ctx, sid, key)
}
