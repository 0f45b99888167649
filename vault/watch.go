package vault

import (
	"context"

	"github.com/google/uuid"
)

// Result is one emission of a subscription.
type Result struct {
	// Value is the decrypted value; empty when absent.
	Value string
	// Present is false when the key is absent at Version.
	Present bool
	// Version is the document version the result was computed from.
	Version int64
	// Err is set when the value at Version could not be decrypted, or when
	// the key store is unavailable. A key store error ends the subscription.
	Err error
}

// Watch subscribes to key. The first Result reflects the current document;
// another is sent every time a newer document version is observed, whichever
// key changed. Versions never go backwards, though intermediate versions may
// be skipped when the subscriber falls behind.
//
// The channel is closed when ctx is done or the vault is closed. A
// decryption failure is delivered as a Result with Err and the subscription
// continues.
func (v *Vault) Watch(ctx context.Context, key string) <-chan Result {
	out := make(chan Result)
	if err := v.checkOpen(); err != nil {
		go func() {
			defer close(out)
			emit(ctx, out, Result{Err: err})
		}()
		return out
	}

	key = v.key(key)
	id := uuid.NewString()
	log := v.log.With("subscription", id, "key", key)

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.watchCtx, cancel)

	go func() {
		defer close(out)
		defer cancel()
		defer stop()

		k, err := v.provider.GetOrCreateKey(ctx)
		if err != nil {
			emit(ctx, out, Result{Err: err})
			return
		}

		log.Debug("vault watch started")
		defer log.Debug("vault watch stopped")

		for snap := range v.store.Watch(ctx) {
			l, err := v.open(k, snap, key)
			if err != nil {
				log.Warn("vault watch: value could not be decrypted", "version", snap.Version)
			}
			res := Result{Value: l.Value, Present: l.Present, Version: snap.Version, Err: err}
			if !emit(ctx, out, res) {
				return
			}
		}
	}()
	return out
}

// emit sends r unless ctx is done first.
func emit(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
