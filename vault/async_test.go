package vault

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAsync_CallbackOnce(t *testing.T) {
	v, _ := createTestVault(t)

	var calls atomic.Int32
	done := make(chan error, 2)
	v.PutAsync(context.Background(), "token", "abc123", func(err error) {
		calls.Add(1)
		done <- err
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("callback not invoked")
	}
	require.NoError(t, v.Close())
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, done, 0)
}

func TestPutAsync_IgnoresCancellation(t *testing.T) {
	v, _ := createTestVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.PutFuture(ctx, "token", "abc123").Wait(context.Background())
	require.NoError(t, err)

	got, ok, err := v.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", got)
}

func TestDeleteAsync(t *testing.T) {
	v, _ := createTestVault(t)
	ctx := context.Background()
	require.NoError(t, v.Put(ctx, "token", "abc123"))

	done := make(chan error, 1)
	v.DeleteAsync(ctx, "token", func(err error) { done <- err })
	require.NoError(t, <-done)

	_, ok, err := v.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAsync_NilCallback(t *testing.T) {
	v, _ := createTestVault(t)
	ctx := context.Background()

	v.PutAsync(ctx, "token", "abc123", nil)
	require.NoError(t, v.Close(), "close waits for the write")
}

func TestFutures(t *testing.T) {
	v, _ := createTestVault(t)
	ctx := context.Background()

	_, err := v.PutFuture(ctx, "token", "abc123").Wait(ctx)
	require.NoError(t, err)

	f := v.GetFuture(ctx, "token")
	<-f.Done()
	l, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Lookup{Value: "abc123", Present: true}, l)

	_, err = v.DeleteFuture(ctx, "token").Wait(ctx)
	require.NoError(t, err)

	l, err = v.GetFuture(ctx, "token").Wait(ctx)
	require.NoError(t, err)
	assert.False(t, l.Present)
}

func TestFuture_WaitRespectsContext(t *testing.T) {
	f := newFuture[Lookup]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	f.resolve(Lookup{Value: "late", Present: true}, nil)
	l, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", l.Value)
}

func TestGetFuture_AfterClose(t *testing.T) {
	v, _ := createTestVault(t)
	require.NoError(t, v.Close())

	_, err := v.GetFuture(context.Background(), "k").Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
