package engine

import (
	"sync"
)

// Executor is a serial callback context. Everything posted to it runs one at a time,
// in posting order, never concurrently.
type Executor interface {
	// Post schedules fn and reports whether it was accepted.
	Post(fn func()) bool
}

// Looper is the stock Executor: one goroutine draining an unbounded FIFO of funcs.
// Post never blocks the caller.
type Looper struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	quit    bool
	started bool
	done    chan struct{}
}

func NewLooper() *Looper {
	return &Looper{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the loop goroutine. Extra calls are no-ops.
func (l *Looper) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.quit {
		return
	}
	l.started = true
	go l.run()
}

func (l *Looper) Post(fn func()) bool {
	l.mu.Lock()
	if l.quit {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
		// Signal already pending
	}
	return true
}

// Quit stops accepting work, runs what was already posted, and waits for the loop to exit.
func (l *Looper) Quit() {
	l.mu.Lock()
	if l.quit {
		started := l.started
		l.mu.Unlock()
		if started {
			<-l.done
		}
		return
	}
	l.quit = true
	started := l.started
	l.mu.Unlock()

	if !started {
		close(l.done)
		return
	}

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *Looper) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		quit := l.quit
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) > 0 {
			continue
		}
		if quit {
			return
		}
		<-l.wake
	}
}
