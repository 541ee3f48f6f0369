// Package executor runs upstream attempts under credential rotation.
// For each attempt it borrows a credential from the pool, runs the
// call, and routes the credential back by error class: success and
// content errors release, transient failures quarantine, permanent
// failures retire. The attempt bound is the number of credentials
// available at entry plus one, so a sweep restoring keys mid-request
// cannot extend the loop unboundedly.
package executor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cognigate/cognigate/internal/keypool"
	gwerrors "github.com/cognigate/cognigate/pkg/errors"
)

// Executor coordinates the pool and upstream attempts.
type Executor struct {
	pool   *keypool.Pool
	logger *slog.Logger
}

// New creates an executor over the credential pool.
func New(pool *keypool.Pool, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{pool: pool, logger: logger}
}

// Do runs attempt under rotation for one provider. The attempt callback
// receives the borrowed secret and must return a classified error on
// failure. Do returns the first success, the first non-retryable
// failure, or PROVIDER_EXHAUSTED once every credential has been tried.
func Do[T any](ctx context.Context, e *Executor, providerName, profileID string, attempt func(secret string) (T, error)) (T, error) {
	var zero T

	snapshot := e.pool.SnapshotProvider(providerName)
	maxAttempts := snapshot.Available + 1

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		cred := e.pool.Acquire(providerName)
		if cred == nil {
			break
		}

		result, err := attempt(cred.Secret)
		if err == nil {
			e.pool.Release(providerName, cred)
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.pool.Release(providerName, cred)
			return zero, err
		}

		switch gwerrors.KindOf(err) {
		case gwerrors.KindCredentialPermanent:
			e.pool.Retire(providerName, cred, err.Error())
			e.logger.Warn("credential retired after upstream rejection",
				"provider", providerName, "profile", profileID, "error", err)
		case gwerrors.KindCredentialTransient:
			e.pool.Quarantine(providerName, cred, err.Error())
			e.logger.Warn("credential quarantined after transient failure",
				"provider", providerName, "profile", profileID, "error", err)
		case gwerrors.KindRequestContentInvalid:
			// The request is at fault, not the key. Rotation cannot help.
			e.pool.Release(providerName, cred)
			return zero, err
		default:
			e.pool.Release(providerName, cred)
			return zero, err
		}
	}

	exhausted := gwerrors.NewProviderExhausted(providerName, profileID)
	if lastErr != nil {
		exhausted.Message = exhausted.Message + ": last error: " + lastErr.Error()
	}
	return zero, exhausted
}
