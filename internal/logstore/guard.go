package logstore

import "time"

// guard is a mutex with a bounded acquire. Contention past the wait window
// surfaces as ErrBusy so producers never park indefinitely behind a slow
// drain.
type guard struct {
	ch chan struct{}
}

func newGuard() *guard {
	return &guard{ch: make(chan struct{}, 1)}
}

// lock reports whether the guard was acquired within wait.
func (g *guard) lock(wait time.Duration) bool {
	select {
	case g.ch <- struct{}{}:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case g.ch <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

func (g *guard) unlock() {
	select {
	case <-g.ch:
	default:
		panic("logstore: unlock of unlocked guard")
	}
}
