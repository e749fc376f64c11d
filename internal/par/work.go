// Package par runs sets of work items in parallel.
package par

import (
	"context"
	"errors"
	"sync"
)

// Work manages a set of work items to be executed in parallel, at most once
// each. The items in the set must all be valid map keys.
type Work[T comparable] struct {
	f       func(context.Context, T) error
	running int

	mu      sync.Mutex
	added   map[T]bool // items added to set
	todo    []T        // items yet to be run, in the order they were added
	wait    sync.Cond  // wait when todo is empty
	waiting int        // number of runners waiting for todo
	errs    []error
}

func (w *Work[T]) init() {
	if w.added == nil {
		w.added = make(map[T]bool)
	}
}

// Add adds item to the work set, if it hasn't already been added.
// It reports whether the item was new.
func (w *Work[T]) Add(item T) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.init()
	if w.added[item] {
		return false
	}
	w.added[item] = true
	w.todo = append(w.todo, item)
	if w.waiting > 0 {
		w.wait.Signal()
	}
	return true
}

// Do runs f in parallel on items from the work set, with at most n
// invocations of f running at a time. It returns when everything added to the
// work set has been processed, and reports the errors returned by f joined
// together. f may add new items to the set.
//
// Once ctx is done, items not yet started are dropped and ctx.Err() is
// reported. Do should only be used once on a given Work.
func (w *Work[T]) Do(ctx context.Context, n int, f func(ctx context.Context, item T) error) error {
	if n < 1 {
		panic("par.Work.Do: n < 1")
	}
	if w.running >= 1 {
		panic("par.Work.Do: already called Do")
	}

	w.running = n
	w.f = f
	w.wait.L = &w.mu

	var wg sync.WaitGroup
	for i := 0; i < n-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runner(ctx)
		}()
	}
	w.runner(ctx)
	wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(w.errs...)
}

// runner executes work in w until both nothing is left to do
// and all the runners are waiting for work.
// (Then all the runners return.)
func (w *Work[T]) runner(ctx context.Context) {
	for {
		w.mu.Lock()
		for len(w.todo) == 0 {
			w.waiting++
			if w.waiting == w.running {
				// All done.
				w.wait.Broadcast()
				w.mu.Unlock()
				return
			}
			w.wait.Wait()
			w.waiting--
		}

		item := w.todo[0]
		w.todo = w.todo[1:]
		if err := ctx.Err(); err != nil {
			if len(w.errs) == 0 || !errors.Is(w.errs[len(w.errs)-1], err) {
				w.errs = append(w.errs, err)
			}
			w.mu.Unlock()
			continue
		}
		w.mu.Unlock()

		if err := w.f(ctx, item); err != nil {
			w.mu.Lock()
			w.errs = append(w.errs, err)
			w.mu.Unlock()
		}
	}
}
