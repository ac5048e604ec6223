package guard

import (
	"context"
	"time"

	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
)

// Verifier checks a token with the backend. Any non-nil error means the
// token must not be trusted for this request.
type Verifier interface {
	Verify(ctx context.Context, role Role, token string) error
}

// APIVerifier calls the role's verify endpoint. Transient failures are
// retried a bounded number of times before they count as a failure; a
// definite rejection is returned straight away.
type APIVerifier struct {
	client  *api.Client
	retries int
	backoff time.Duration
}

func NewAPIVerifier(client *api.Client, retries int, backoff time.Duration) *APIVerifier {
	if retries < 0 {
		retries = 0
	}
	return &APIVerifier{client: client, retries: retries, backoff: backoff}
}

func (v *APIVerifier) Verify(ctx context.Context, role Role, token string) error {
	var err error
	for attempt := 0; attempt <= v.retries; attempt++ {
		if attempt > 0 {
			delay := v.backoff * time.Duration(1<<(attempt-1))
			logger.DebugContext(ctx, "Retrying token verification",
				"role", role.Name,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = v.client.Verify(ctx, role.VerifyPath, token)
		if err == nil || !api.IsTransient(err) {
			return err
		}
	}
	return err
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, role Role, token string) error

func (f VerifierFunc) Verify(ctx context.Context, role Role, token string) error {
	return f(ctx, role, token)
}
