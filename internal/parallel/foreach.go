// Package parallel runs index-addressed compute passes across a bounded
// number of goroutines.
package parallel

import "golang.org/x/sync/errgroup"

// ForEach calls body for every i in [0, n), splitting the range into at most
// workers contiguous chunks that run concurrently. With workers <= 1 the loop
// runs inline on the calling goroutine.
//
// body must only write state owned by index i. The first error returned by
// any chunk is returned once all chunks finish; remaining indices in a failed
// chunk are skipped.
func ForEach(n, workers int, body func(i int) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			if err := body(i); err != nil {
				return err
			}
		}
		return nil
	}
	if workers > n {
		workers = n
	}

	var g errgroup.Group
	g.SetLimit(workers)

	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := body(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
