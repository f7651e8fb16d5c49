package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

// Pool runs external collaborator calls with a concurrency cap and a
// per-call timeout. A panicking call is converted to an error.
type Pool struct {
	sem            *semaphore.Weighted
	defaultTimeout time.Duration
	observe        func(name string, elapsed time.Duration, err error)
}

// NewPool creates a pool allowing size concurrent calls.
func NewPool(size int, defaultTimeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:            semaphore.NewWeighted(int64(size)),
		defaultTimeout: defaultTimeout,
	}
}

// SetObserver installs a callback invoked after every call.
func (p *Pool) SetObserver(fn func(name string, elapsed time.Duration, err error)) {
	p.observe = fn
}

// Run executes fn under the pool. timeout <= 0 uses the pool default. The
// timeout covers the wait for a slot as well as the call, so a caller whose
// context never ends still gives up when hung calls hold every slot. The
// slot is held until fn returns, even if Run already gave up on it.
func (p *Pool) Run(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}

	var (
		execCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	waitStart := time.Now()
	if err := p.sem.Acquire(execCtx, 1); err != nil {
		err = errors.New(fmt.Errorf("waiting for %s slot: %w", name, err)).
			Component(component).
			Category(errors.CategoryTimeout).
			Context("service", name).
			Timing(name, time.Since(waitStart)).
			Build()
		if p.observe != nil {
			p.observe(name, time.Since(waitStart), err)
		}
		return err
	}

	start := time.Now()
	result := make(chan error, 1)

	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				result <- errors.Newf("%s call panicked: %v", name, r).
					Component(component).
					Category(errors.CategoryIntegration).
					Context("service", name).
					Build()
			}
		}()
		result <- fn(execCtx)
	}()

	var err error
	select {
	case err = <-result:
	case <-execCtx.Done():
		ctxErr := execCtx.Err()
		category := errors.CategoryCancellation
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		err = errors.New(fmt.Errorf("%s call did not finish: %w", name, ctxErr)).
			Component(component).
			Category(category).
			Context("service", name).
			Timing(name, time.Since(start)).
			Build()
	}

	if p.observe != nil {
		p.observe(name, time.Since(start), err)
	}
	return err
}
