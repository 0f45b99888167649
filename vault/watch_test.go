package vault

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cryptovault/docstore"
	"github.com/roach88/cryptovault/vaulterr"
)

func TestWatch_AbsentThenValues(t *testing.T) {
	v, _ := createTestVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := v.Watch(ctx, "token")
	first := recvResult(t, ch)
	require.NoError(t, first.Err)
	assert.False(t, first.Present)
	assert.Equal(t, int64(0), first.Version)

	require.NoError(t, v.Put(ctx, "token", "v1"))
	r := recvResult(t, ch)
	require.NoError(t, r.Err)
	assert.Equal(t, Result{Value: "v1", Present: true, Version: 1}, r)

	require.NoError(t, v.Delete(ctx, "token"))
	r = recvResult(t, ch)
	assert.Equal(t, Result{Present: false, Version: 2}, r)
}

func TestWatch_OtherKeyChangeReemits(t *testing.T) {
	v, _ := createTestVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, v.Put(ctx, "token", "abc123"))
	ch := v.Watch(ctx, "token")
	assert.Equal(t, int64(1), recvResult(t, ch).Version)

	require.NoError(t, v.Put(ctx, "unrelated", "x"))
	r := recvResult(t, ch)
	assert.Equal(t, int64(2), r.Version)
	assert.Equal(t, "abc123", r.Value)
}

// Subscribers eventually see the latest value and never an older one.
func TestWatch_Freshness(t *testing.T) {
	v, _ := createTestVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := v.Watch(ctx, "k")
	recvResult(t, ch)

	const n = 25
	go func() {
		for i := 1; i <= n; i++ {
			assert.NoError(t, v.Put(context.Background(), "k", fmt.Sprintf("v%d", i)))
		}
	}()

	last := int64(0)
	final := recvUntil(t, ch, func(r Result) bool {
		require.NoError(t, r.Err)
		require.Greater(t, r.Version, last, "versions never go backwards")
		last = r.Version
		return r.Value == fmt.Sprintf("v%d", n)
	})
	assert.Equal(t, int64(n), final.Version)
}

func TestWatch_DecryptionFailureContinues(t *testing.T) {
	v, store := createTestVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := v.Watch(ctx, "token")
	recvResult(t, ch)

	_, err := store.AtomicUpdate(ctx, func(cur docstore.Entries) (docstore.Entries, error) {
		return cur.With("token", "not-a-valid-encrypted-string"), nil
	})
	require.NoError(t, err)

	bad := recvResult(t, ch)
	assert.True(t, vaulterr.IsDecryptionFailed(bad.Err))
	assert.Equal(t, int64(1), bad.Version)

	require.NoError(t, v.Put(ctx, "token", "recovered"))
	good := recvResult(t, ch)
	require.NoError(t, good.Err)
	assert.Equal(t, "recovered", good.Value)
}

func TestWatch_Cancel(t *testing.T) {
	v, _ := createTestVault(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch := v.Watch(ctx, "token")
	recvResult(t, ch)
	cancel()

	requireClosed(t, ch)
}

func TestWatch_EndsOnClose(t *testing.T) {
	v, _ := createTestVault(t)

	ch := v.Watch(context.Background(), "token")
	recvResult(t, ch)
	require.NoError(t, v.Close())

	requireClosed(t, ch)
}

func TestWatch_Restartable(t *testing.T) {
	v, _ := createTestVault(t)
	require.NoError(t, v.Put(context.Background(), "token", "abc123"))

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		r := recvResult(t, v.Watch(ctx, "token"))
		cancel()
		assert.Equal(t, "abc123", r.Value)
	}
}
