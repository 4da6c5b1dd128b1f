package app

import (
	"context"
	"sync"

	"github.com/jsamuelsen/authrpc/internal/domain"
)

// Result is the single outcome of an asynchronous dispatch.
type Result[T any] struct {
	Value *T
	Err   error
}

// DispatchAsync starts Dispatch on its own goroutine. The returned channel
// delivers exactly one Result and is then closed; it is buffered, so the
// goroutine never leaks when nobody reads it.
func DispatchAsync[T any](ctx context.Context, d *Dispatcher, req Request, validate Validator[T]) <-chan Result[T] {
	ch := make(chan Result[T], 1)

	go func() {
		defer close(ch)

		value, err := Dispatch(ctx, d, req, validate)
		ch <- Result[T]{Value: value, Err: err}
	}()

	return ch
}

// Await waits for the result of DispatchAsync. When ctx ends first the
// dispatch keeps running to its own outcome and a NetworkError wrapping
// ctx's error is returned.
func Await[T any](ctx context.Context, ch <-chan Result[T]) (*T, error) {
	select {
	case r := <-ch:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, domain.NewNetworkError("await", ctx.Err())
	}
}

// DispatchAll sends every request with at most limit calls in flight and
// returns one Result per request, in request order. A failed call does not
// cancel the others.
func DispatchAll[T any](
	ctx context.Context,
	d *Dispatcher,
	limit int,
	reqs []Request,
	validate Validator[T],
) []Result[T] {
	if limit <= 0 {
		limit = len(reqs)
	}

	results := make([]Result[T], len(reqs))
	sem := make(chan struct{}, max(limit, 1))

	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Go(func() {
			sem <- struct{}{}

			defer func() { <-sem }()

			value, err := Dispatch(ctx, d, req, validate)
			results[i] = Result[T]{Value: value, Err: err}
		})
	}

	wg.Wait()

	return results
}
