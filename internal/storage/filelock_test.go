package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockSerializesAccess(t *testing.T) {
	fl := NewFileLock()
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			unlock, err := fl.Acquire(context.Background(), "/p", time.Second)
			require.NoError(t, err)
			defer unlock()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			time.Sleep(time.Millisecond)
		}(i)
	}
	wg.Wait()
	assert.Len(t, order, 5)
}

func TestFileLockTimeout(t *testing.T) {
	fl := NewFileLock()
	unlock, err := fl.Acquire(context.Background(), "/p", time.Second)
	require.NoError(t, err)
	defer unlock()

	_, err = fl.Acquire(context.Background(), "/p", 20*time.Millisecond)
	assert.Error(t, err)
}

func TestFileLockContextCancellation(t *testing.T) {
	fl := NewFileLock()
	unlock, err := fl.Acquire(context.Background(), "/p", time.Second)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fl.Acquire(ctx, "/p", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileLockIndependentPaths(t *testing.T) {
	fl := NewFileLock()
	unlockA, err := fl.Acquire(context.Background(), "/a", time.Second)
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := fl.Acquire(context.Background(), "/b", 50*time.Millisecond)
	require.NoError(t, err)
	unlockB()
}

func TestFileLockPrunesIdleEntries(t *testing.T) {
	fl := NewFileLock()
	unlock, err := fl.Acquire(context.Background(), "/x", time.Second)
	require.NoError(t, err)
	unlock()
	assert.Equal(t, 0, fl.Len())
}
