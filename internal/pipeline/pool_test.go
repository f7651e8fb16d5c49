package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolRunReturnsCallError(t *testing.T) {
	t.Parallel()
	pool := NewPool(2, time.Second)

	require.NoError(t, pool.Run(context.Background(), "ok", 0, func(context.Context) error { return nil }))

	want := errors.NewStd("boom")
	err := pool.Run(context.Background(), "fails", 0, func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestPoolRunTimesOut(t *testing.T) {
	t.Parallel()
	pool := NewPool(1, time.Minute)

	err := pool.Run(context.Background(), "slow", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
	assert.Equal(t, errors.KindTransient, errors.KindOf(err))
}

func TestPoolRunRecoversPanic(t *testing.T) {
	t.Parallel()
	pool := NewPool(1, time.Second)

	err := pool.Run(context.Background(), "panics", 0, func(context.Context) error {
		panic("collaborator exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collaborator exploded")
	assert.Equal(t, errors.KindExternalService, errors.KindOf(err))

	// the slot was released
	require.NoError(t, pool.Run(context.Background(), "after", 0, func(context.Context) error { return nil }))
}

func TestPoolLimitsConcurrency(t *testing.T) {
	t.Parallel()
	const size = 2
	pool := NewPool(size, time.Second)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for range 6 {
		wg.Go(func() {
			_ = pool.Run(context.Background(), "work", 0, func(context.Context) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(size))
}

func TestPoolRunCancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	pool := NewPool(1, time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Run(context.Background(), "holder", 0, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Run(ctx, "waiter", 0, func(context.Context) error { return nil })
	require.Error(t, err)

	close(release)
	<-done
}

func TestPoolRunGivesUpWaitingBehindHungCall(t *testing.T) {
	t.Parallel()
	pool := NewPool(1, time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Ignores its context, so it keeps the only slot after timing out.
		_ = pool.Run(context.Background(), "hung", 20*time.Millisecond, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// A context that never ends, as the worker hands to its jobs.
	ctx := context.WithoutCancel(context.Background())
	ran := false
	begin := time.Now()
	err := pool.Run(ctx, "waiter", 50*time.Millisecond, func(context.Context) error {
		ran = true
		return nil
	})

	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(begin), 5*time.Second)
	assert.False(t, ran)

	close(release)
	<-done
}

func TestPoolObserver(t *testing.T) {
	t.Parallel()
	pool := NewPool(1, time.Second)

	var names []string
	var failures int
	pool.SetObserver(func(name string, _ time.Duration, err error) {
		names = append(names, name)
		if err != nil {
			failures++
		}
	})

	_ = pool.Run(context.Background(), "a", 0, func(context.Context) error { return nil })
	_ = pool.Run(context.Background(), "b", 0, func(context.Context) error { return errors.NewStd("x") })

	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, 1, failures)
}
