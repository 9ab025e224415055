package queue

import (
	"sync"
	"time"
)

// waitWithTimeout waits on cond for at most timeout, returning false if
// the timeout elapsed without a signal. The caller must hold cond.L.
// sync.Cond has no native timeout, so a helper goroutine wakes the
// waiter by broadcasting once the timer fires; if the cond is already
// signaled first the timer is stopped and the goroutine exits quietly.
func waitWithTimeout(cond *sync.Cond, timeout time.Duration) bool {
	timedOut := make(chan struct{})
	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		close(timedOut)
		cond.Broadcast()
	})

	go func() {
		<-done
		timer.Stop()
	}()

	cond.Wait()
	close(done)

	select {
	case <-timedOut:
		return false
	default:
		return true
	}
}
