// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal

import (
	"context"
	"sync"
)

// Concurrent dispatches values to a handler with a maximum concurrency, where
// 0 indicates one goroutine per value. It returns a function to dispatch a
// value and a function that stops dispatch and waits for in-flight handlers.
func Concurrent[T any](
	concurrency uint,
	handler func(context.Context, T),
) (dispatch func(context.Context, T), done func()) {
	type args struct {
		ctx context.Context
		val T
	}

	var wg sync.WaitGroup
	var once sync.Once
	stopped := make(chan struct{})

	if concurrency == 0 {
		var mu sync.RWMutex
		return func(ctx context.Context, val T) {
				mu.RLock()
				defer mu.RUnlock()
				select {
				case <-stopped:
					return
				default:
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					handler(ctx, val)
				}()
			}, func() {
				once.Do(func() {
					mu.Lock()
					close(stopped)
					mu.Unlock()
				})
				wg.Wait()
			}
	}

	queue := make(chan args)
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range queue {
				handler(a.ctx, a.val)
			}
		}()
	}

	var mu sync.RWMutex
	return func(ctx context.Context, val T) {
			mu.RLock()
			defer mu.RUnlock()
			select {
			case <-stopped:
			case queue <- args{ctx, val}:
			case <-ctx.Done():
			}
		}, func() {
			once.Do(func() {
				close(stopped)
				mu.Lock()
				close(queue)
				mu.Unlock()
			})
			wg.Wait()
		}
}
