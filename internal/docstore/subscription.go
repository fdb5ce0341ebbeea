package docstore

import "sync"

// Listener receives document snapshots.
type Listener func(Snapshot)

// Subscription is a live registration on one path.
type Subscription struct {
	store *Store
	path  string
	fn    Listener

	mu     sync.Mutex
	queue  []Snapshot
	wake   chan struct{}
	closed bool
	once   sync.Once
}

func newSubscription(s *Store, path string, fn Listener) *Subscription {
	return &Subscription{
		store: s,
		path:  path,
		fn:    fn,
		wake:  make(chan struct{}, 1),
	}
}

// Path returns the subscribed path.
func (sub *Subscription) Path() string {
	return sub.path
}

func (sub *Subscription) push(snap Snapshot) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.queue = append(sub.queue, snap)
	select {
	case sub.wake <- struct{}{}:
	default:
	}
	sub.mu.Unlock()
}

func (sub *Subscription) run() {
	for range sub.wake {
		for {
			sub.mu.Lock()
			if sub.closed || len(sub.queue) == 0 {
				sub.mu.Unlock()
				break
			}
			snap := sub.queue[0]
			sub.queue[0] = Snapshot{}
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()
			sub.fn(snap)
		}
	}
}

// Close releases the subscription.
//
// Queued snapshots are dropped. A call already dequeued when Close is
// invoked may still run, so listeners that must stay silent afterwards
// guard themselves. Close may be called from within the listener and more
// than once.
func (sub *Subscription) Close() {
	sub.store.unsubscribe(sub)
	sub.stop()
}

func (sub *Subscription) stop() {
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.closed = true
		sub.queue = nil
		close(sub.wake)
		sub.mu.Unlock()
	})
}
