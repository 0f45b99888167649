package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/roach88/cryptovault/vaulterr"
)

// errConflict reports that another commit landed between read and write.
var errConflict = errors.New("document changed by a concurrent commit")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("document store is closed")

// RetryPolicy bounds how long a store keeps retrying a conflicting commit.
type RetryPolicy struct {
	// MaxRetries caps the number of retries after the first attempt.
	// Zero means no cap other than MaxElapsed.
	MaxRetries uint64

	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// MaxElapsed caps total time spent retrying. Zero means no cap.
	MaxElapsed time.Duration
}

// DefaultRetryPolicy retries up to 10 times within 5 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      10,
		InitialInterval: 5 * time.Millisecond,
		MaxElapsed:      5 * time.Second,
	}
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	eb.MaxElapsedTime = p.MaxElapsed
	eb.Reset()

	var b backoff.BackOff = eb
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return backoff.WithContext(b, ctx)
}

// updateFuncError carries an error returned by an UpdateFunc through the
// retry loop so it can be handed back to the caller unchanged.
type updateFuncError struct {
	err error
}

func (e *updateFuncError) Error() string { return e.err.Error() }
func (e *updateFuncError) Unwrap() error { return e.err }

// commit runs attempt under p. Errors for which retryable returns true are
// retried; an UpdateFunc error is returned as is; anything else, including
// exhausting the policy, becomes STORE_TRANSACTION_FAILED.
func (p RetryPolicy) commit(ctx context.Context, op string, attempt func() error, retryable func(error) bool) error {
	err := backoff.Retry(func() error {
		err := attempt()
		if err == nil {
			return nil
		}
		var ufe *updateFuncError
		if errors.As(err, &ufe) || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx))
	if err == nil {
		return nil
	}

	var ufe *updateFuncError
	if errors.As(err, &ufe) {
		return ufe.err
	}
	if vaulterr.IsStoreTransactionFailed(err) {
		return err
	}
	return vaulterr.StoreTransactionFailed(op, err)
}

// newCommitID returns a time-ordered commit identifier.
func newCommitID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
