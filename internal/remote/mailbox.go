package remote

import "sync"

// mailbox runs queued callbacks one at a time, in order, on its own
// goroutine. Nothing queued runs once stop has returned.
type mailbox struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	sealed bool
}

func newMailbox() *mailbox {
	m := &mailbox{wake: make(chan struct{}, 1)}
	go m.run()
	return m
}

func (m *mailbox) post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.sealed {
		return
	}
	m.queue = append(m.queue, fn)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) run() {
	for range m.wake {
		for {
			m.mu.Lock()
			if m.closed || len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			fn := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			fn()
		}
	}
}

// finish queues fn as the last callback. Callbacks already queued still run;
// later posts are dropped.
func (m *mailbox) finish(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.sealed {
		return
	}
	m.sealed = true
	m.queue = append(m.queue, fn)
	select {
	case m.wake <- struct{}{}:
	default:
	}
	close(m.wake)
}

func (m *mailbox) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	if !m.sealed {
		close(m.wake)
	}
}
