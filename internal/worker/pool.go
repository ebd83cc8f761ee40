package worker

import (
	"context"
	"sync"
)

// ForEach runs fn for every index in [0, n) on at most workers
// goroutines and blocks until all calls return. Each fn call writes its
// own result slot, so callers keep submission order without collecting
// from a channel.
func ForEach(ctx context.Context, workers, n int, fn func(ctx context.Context, i int)) {
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, i)
		}(i)
	}
	wg.Wait()
}
