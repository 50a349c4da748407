package tokenizer

import "runtime"

// runBatch applies fn to each item concurrently, preserving input order in
// the result slice, using a worker pool sized to GOMAXPROCS. Each worker
// only ever touches items assigned to it, so no synchronization beyond the
// final join is needed; Tokenizer's own concurrency safety (the sync.Map
// cache) is what makes running fn concurrently across items sound in the
// first place.
func runBatch[T, R any](items []T, fn func(T) R) []R {
	n := len(items)
	results := make([]R, n)
	if n == 0 {
		return results
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	type job struct {
		idx  int
		item T
	}
	jobs := make(chan job, n)
	for i, item := range items {
		jobs <- job{i, item}
	}
	close(jobs)

	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for j := range jobs {
				results[j.idx] = fn(j.item)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	return results
}
