/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package realtime

import "sync"

// loop runs posted work one item at a time, in posting order, on a single
// goroutine. The queue is unbounded so posting never blocks, including from
// work already running on the loop.
type loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func newLoop() *loop {
	l := &loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	go l.run()

	return l
}

func (l *loop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.signal()

	return true
}

func (l *loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-l.wake
			continue
		}

		for _, fn := range batch {
			fn()
		}
	}
}

// flush blocks until everything posted before it has run. It must not be
// called from the loop goroutine.
func (l *loop) flush() {
	ch := make(chan struct{})
	if !l.post(func() { close(ch) }) {
		<-l.done
		return
	}
	<-ch
}

// close stops accepting work. Queued work still runs.
func (l *loop) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.signal()
}
