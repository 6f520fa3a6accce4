package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// DefaultRetryDelay gives a renewed token time to be persisted before the retry
const DefaultRetryDelay = 500 * time.Millisecond

// TokenProvider obtains a fresh token, typically by prompting for credentials
type TokenProvider func(ctx context.Context) (string, error)

// AuthRetrier re-runs an operation once after an authentication failure has been
// resolved by its TokenProvider.
type AuthRetrier struct {
	client   *Client
	provider TokenProvider
	delay    time.Duration
}

// NewAuthRetrier creates a retrier for operations on client
func NewAuthRetrier(client *Client, provider TokenProvider) *AuthRetrier {
	return &AuthRetrier{client: client, provider: provider, delay: DefaultRetryDelay}
}

// WithDelay overrides the pause between re-authentication and retry
func (r *AuthRetrier) WithDelay(d time.Duration) *AuthRetrier {
	r.delay = d
	return r
}

// Do runs op and, if it fails with an authentication failure, renews the token and runs it once more.
func (r *AuthRetrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if r == nil {
		return op(ctx)
	}
	err := op(ctx)
	if err == nil || !common.IsAuthFailure(err) || r.provider == nil {
		return err
	}

	slog.Info("Lookup request rejected, requesting new token", "error", err)
	token, perr := r.provider(ctx)
	if perr != nil {
		if common.IsCancellation(perr) {
			return perr
		}
		return fmt.Errorf("re-authentication failed: %w", perr)
	}
	if r.client != nil {
		if err := r.client.SetToken(token); err != nil {
			return err
		}
	}

	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return op(ctx)
}

// Retry is Do for operations returning a value
func Retry[T any](ctx context.Context, r *AuthRetrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
