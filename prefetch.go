package gql

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lukaszraczylo/go-tagged-graphql/compiler"
	libpack_logger "github.com/lukaszraczylo/go-tagged-graphql/logging"
)

// Prefetch dispatches the operations concurrently and waits for all of them,
// so later reads are served from the cache. Failures are joined into the
// returned error.
func (b *BaseClient) Prefetch(ctx context.Context, ops ...*compiler.Operation) error {
	b.Logger.Info(&libpack_logger.LogMessage{
		Message: "Prefetching operations",
		Pairs: map[string]interface{}{
			"operations": len(ops),
		},
	})

	startTime := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	successCount := 0

	for i, op := range ops {
		wg.Add(1)
		go func(index int, op *compiler.Operation) {
			defer wg.Done()

			_, err := b.Query(ctx, op, nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				b.Logger.Warning(&libpack_logger.LogMessage{
					Message: "Failed to prefetch operation",
					Pairs: map[string]interface{}{
						"index": index,
						"error": err.Error(),
					},
				})
				return
			}
			successCount++
		}(i, op)
	}

	wg.Wait()

	b.Logger.Info(&libpack_logger.LogMessage{
		Message: "Prefetch completed",
		Pairs: map[string]interface{}{
			"successful":  successCount,
			"failed":      len(errs),
			"duration_ms": time.Since(startTime).Milliseconds(),
		},
	})
	return errors.Join(errs...)
}
