// Package thread pins the calling goroutine to its own kernel thread
// and raises that thread's scheduling priority, used by internal/rxengine
// to honor a pending realtime-priority request for the Rx worker (spec.md
// §4.4 step 4).
//
// Grounded on the pack example repo tve-devices's thread/thread.go,
// copied near-verbatim since the underlying syscall trick does not vary
// by caller.
package thread

import (
	"runtime"
	"syscall"
	"unsafe"
)

const fifo = 1 // fifo scheduling policy
const roundRobin = 2

type schedParam struct {
	Priority int
}

// Realtime locks the calling goroutine to its own kernel thread and
// raises that thread to realtime round-robin scheduling at priority 10.
func Realtime() error {
	runtime.LockOSThread()
	tid := syscall.Gettid()
	res, _, err := syscall.RawSyscall(syscall.SYS_SCHED_SETSCHEDULER, uintptr(tid),
		uintptr(roundRobin), uintptr(unsafe.Pointer(&schedParam{10})))
	if res == 0 {
		return nil
	}
	return err
}
