package vault

import (
	"context"
)

// Future is the pending result of an asynchronous vault operation.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(value T, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done. Giving up on a
// Future does not cancel the operation behind it.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// PutAsync runs Put in the background and reports the outcome to done
// exactly once. Once started the write runs to completion even if ctx is
// cancelled. done may be nil.
func (v *Vault) PutAsync(ctx context.Context, key, value string, done func(error)) {
	ctx = context.WithoutCancel(ctx)
	v.spawn(func() { notify(done, v.put(ctx, key, value)) }, func(err error) { notify(done, err) })
}

// DeleteAsync runs Delete in the background and reports the outcome to done
// exactly once. Once started the delete runs to completion even if ctx is
// cancelled. done may be nil.
func (v *Vault) DeleteAsync(ctx context.Context, key string, done func(error)) {
	ctx = context.WithoutCancel(ctx)
	v.spawn(func() { notify(done, v.delete(ctx, key)) }, func(err error) { notify(done, err) })
}

// PutFuture is PutAsync returning a Future.
func (v *Vault) PutFuture(ctx context.Context, key, value string) *Future[struct{}] {
	f := newFuture[struct{}]()
	v.PutAsync(ctx, key, value, func(err error) { f.resolve(struct{}{}, err) })
	return f
}

// DeleteFuture is DeleteAsync returning a Future.
func (v *Vault) DeleteFuture(ctx context.Context, key string) *Future[struct{}] {
	f := newFuture[struct{}]()
	v.DeleteAsync(ctx, key, func(err error) { f.resolve(struct{}{}, err) })
	return f
}

// GetFuture runs Get in the background. Unlike writes, the read observes
// ctx cancellation.
func (v *Vault) GetFuture(ctx context.Context, key string) *Future[Lookup] {
	f := newFuture[Lookup]()
	v.spawn(
		func() { f.resolve(v.get(ctx, key)) },
		func(err error) { f.resolve(Lookup{}, err) },
	)
	return f
}

// spawn runs op on a new goroutine tracked by Close. If the vault is already
// closed, reject is called with ErrClosed instead.
func (v *Vault) spawn(op func(), reject func(error)) {
	leave, err := v.enter()
	if err != nil {
		reject(err)
		return
	}

	go func() {
		defer leave()
		op()
	}()
}

func notify(done func(error), err error) {
	if done != nil {
		done(err)
	}
}
