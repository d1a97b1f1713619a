package fn

import "sync"

// FanOut runs functions concurrently and returns their results in order.
func FanOut[T any](fns ...func() T) []T {
	out := make([]T, len(fns))
	var wg sync.WaitGroup
	for i, f := range fns {
		wg.Add(1)
		go func(i int, f func() T) {
			defer wg.Done()
			out[i] = f()
		}(i, f)
	}
	wg.Wait()
	return out
}

// ParMapErr applies f to each item with bounded concurrency, preserving
// order. All items are attempted; the first error (by input order) is
// returned alongside the partial output.
func ParMapErr[T, U any](items []T, workers int, f func(T) (U, error)) ([]U, error) {
	out := make([]U, len(items))
	errs := make([]error, len(items))

	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}
	if workers == 0 {
		return out, nil
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i], errs[i] = f(v)
		}(i, v)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
