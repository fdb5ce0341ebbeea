// Package remotetest provides an in-memory remote.Store double with full
// control over notification timing.
package remotetest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/maruel/treksync/internal/remote"
)

// Write is one Set call observed by the Fake.
type Write struct {
	Path  string
	Value json.RawMessage
}

// Fake is a remote.Store whose notifications run synchronously on the
// goroutine that triggers them.
//
// By default Set echoes the write to every subscriber before returning. With
// HoldEchoes the writes are recorded and applied only on Flush, which lets a
// test interleave several writes before any notification.
type Fake struct {
	mu         sync.Mutex
	docs       map[string]json.RawMessage
	subs       map[string]map[*fakeSub]struct{}
	writes     []Write
	held       []Write
	hold       bool
	setErr     error
	subErr     error
	delivered  int
	failedSets int
	wrote      chan struct{}
}

type fakeSub struct {
	f       *Fake
	path    string
	onValue func(remote.Snapshot)
	onError func(error)
	closed  bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		docs:  make(map[string]json.RawMessage),
		subs:  make(map[string]map[*fakeSub]struct{}),
		wrote: make(chan struct{}, 1024),
	}
}

// HoldEchoes makes Set record writes without notifying until Flush.
func (f *Fake) HoldEchoes(hold bool) {
	f.mu.Lock()
	f.hold = hold
	f.mu.Unlock()
}

// FailSets makes every following Set return err. nil restores success.
func (f *Fake) FailSets(err error) {
	f.mu.Lock()
	f.setErr = err
	f.mu.Unlock()
}

// FailSubscribes makes every following Subscribe return err.
func (f *Fake) FailSubscribes(err error) {
	f.mu.Lock()
	f.subErr = err
	f.mu.Unlock()
}

// Subscribe implements remote.Store. The current document is delivered
// before Subscribe returns.
func (f *Fake) Subscribe(path string, onValue func(remote.Snapshot), onError func(error)) (remote.Subscription, error) {
	f.mu.Lock()
	if f.subErr != nil {
		err := f.subErr
		f.mu.Unlock()
		return nil, err
	}
	s := &fakeSub{f: f, path: path, onValue: onValue, onError: onError}
	m := f.subs[path]
	if m == nil {
		m = make(map[*fakeSub]struct{})
		f.subs[path] = m
	}
	m[s] = struct{}{}
	snap := remote.Snapshot{Path: path, Value: f.docs[path]}
	f.mu.Unlock()
	f.deliver(s, snap)
	return s, nil
}

// Set implements remote.Store.
func (f *Fake) Set(_ context.Context, path string, value json.RawMessage) error {
	f.mu.Lock()
	if f.setErr != nil {
		err := f.setErr
		f.failedSets++
		f.mu.Unlock()
		f.signal()
		return err
	}
	w := Write{Path: path, Value: append(json.RawMessage(nil), value...)}
	f.writes = append(f.writes, w)
	hold := f.hold
	if hold {
		f.held = append(f.held, w)
	}
	f.mu.Unlock()
	if !hold {
		f.Emit(w.Path, w.Value)
	}
	f.signal()
	return nil
}

func (f *Fake) signal() {
	select {
	case f.wrote <- struct{}{}:
	default:
	}
}

// WaitWrites blocks until n Set calls, successful or not, happened in
// total, or ctx is done.
func (f *Fake) WaitWrites(ctx context.Context, n int) error {
	for {
		f.mu.Lock()
		total := f.attempts()
		f.mu.Unlock()
		if total >= n {
			return nil
		}
		select {
		case <-f.wrote:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Fake) attempts() int {
	return len(f.writes) + f.failedSets
}

// Flush applies held writes in the order they were received.
func (f *Fake) Flush() {
	f.mu.Lock()
	held := f.held
	f.held = nil
	f.mu.Unlock()
	for _, w := range held {
		f.Emit(w.Path, w.Value)
	}
}

// Emit stores value at path, as if another session wrote it, and notifies
// every live subscriber.
func (f *Fake) Emit(path string, value json.RawMessage) {
	f.mu.Lock()
	if len(value) == 0 || string(value) == "null" {
		delete(f.docs, path)
		value = nil
	} else {
		f.docs[path] = value
	}
	var targets []*fakeSub
	for s := range f.subs[path] {
		targets = append(targets, s)
	}
	f.mu.Unlock()
	for _, s := range targets {
		f.deliver(s, remote.Snapshot{Path: path, Value: value})
	}
}

// FailSubscription reports err to every subscriber of path and drops them.
func (f *Fake) FailSubscription(path string, err error) {
	f.mu.Lock()
	var targets []*fakeSub
	for s := range f.subs[path] {
		targets = append(targets, s)
		s.closed = true
	}
	delete(f.subs, path)
	f.mu.Unlock()
	for _, s := range targets {
		if s.onError != nil {
			s.onError(err)
		}
	}
}

func (f *Fake) deliver(s *fakeSub, snap remote.Snapshot) {
	f.mu.Lock()
	if s.closed {
		f.mu.Unlock()
		return
	}
	f.delivered++
	f.mu.Unlock()
	s.onValue(snap)
}

// Writes returns every successful Set so far.
func (f *Fake) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// Document returns the stored value at path.
func (f *Fake) Document(path string) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[path]
}

// Subscribers returns the number of live subscriptions on path.
func (f *Fake) Subscribers(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[path])
}

// Delivered returns how many notifications reached a subscriber.
func (f *Fake) Delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered
}

// Close implements remote.Subscription.
func (s *fakeSub) Close() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.closed = true
	if m := s.f.subs[s.path]; m != nil {
		delete(m, s)
		if len(m) == 0 {
			delete(s.f.subs, s.path)
		}
	}
}
