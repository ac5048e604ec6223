// Package session keeps per-browser state on the server: the bearer tokens a
// browser would otherwise hold in local storage, and in-progress form data.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("session key not found")
	ErrNoSession = errors.New("no session in context")
)

// Store is a key/value space partitioned by session id. Implementations
// expire a whole session after it has been idle for their configured TTL.
type Store interface {
	Get(ctx context.Context, sid, key string) ([]byte, error)
	Set(ctx context.Context, sid, key string, value []byte) error
	Delete(ctx context.Context, sid, key string) error

	// Acquire takes a short-lived exclusive lock named key within sid.
	// ok is false when someone else holds it. release is safe to call once.
	Acquire(ctx context.Context, sid, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type ctxKey struct{}

func WithID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, sid)
}

func IDFrom(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(ctxKey{}).(string)
	return sid, ok && sid != ""
}
