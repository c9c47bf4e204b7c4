package game

import (
	"context"
	"sync"
)

// wakeOnCancel broadcasts cond once ctx is done so waiters can observe ctx.Err.
// The returned func must be called when the wait is over.
func wakeOnCancel(ctx context.Context, mu *sync.Mutex, cond *sync.Cond) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			mu.Lock()
			cond.Broadcast()
			mu.Unlock()
		case <-done:
		}
	}()
	return func() { close(done) }
}
