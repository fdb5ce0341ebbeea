package remote

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/maruel/treksync/internal/docstore"
)

func TestMailboxOrder(t *testing.T) {
	m := newMailbox()
	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 100 {
		m.post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	done := make(chan struct{})
	m.finish(func() { close(done) })
	m.post(func() { t.Error("posted after finish") })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mailbox never drained")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 || !slices.IsSorted(got) {
		t.Fatalf("callbacks ran out of order: %v", got)
	}
	m.stop()
	m.stop()
}

func TestMailboxStop(t *testing.T) {
	m := newMailbox()
	block := make(chan struct{})
	started := make(chan struct{})
	m.post(func() {
		close(started)
		<-block
	})
	<-started
	m.post(func() { t.Error("queued callback ran after stop") })
	m.stop()
	close(block)
	// Give the mailbox goroutine a chance to misbehave.
	time.Sleep(10 * time.Millisecond)
}

func TestLocal(t *testing.T) {
	ds, err := docstore.Open("", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()
	var s Store = &Local{Store: ds}

	values := make(chan Snapshot, 4)
	sub, err := s.Subscribe("chat", func(snap Snapshot) { values <- snap }, nil)
	if err != nil {
		t.Fatal(err)
	}
	if snap := recv(t, values); snap.Exists() {
		t.Fatalf("initial snapshot = %s", snap.Value)
	}
	if err := s.Set(context.Background(), "chat", []byte(`[ ]`)); err != nil {
		t.Fatal(err)
	}
	if snap := recv(t, values); string(snap.Value) != "[]" || snap.Rev != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	sub.Close()
	sub.Close()
	if n := ds.Subscribers("chat"); n != 0 {
		t.Fatalf("Subscribers() = %d after Close", n)
	}
	if _, err := s.Subscribe("a.b", func(Snapshot) {}, nil); err == nil {
		t.Fatal("invalid path accepted")
	}
}

func recv(t *testing.T, c <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-c:
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot")
		return Snapshot{}
	}
}
