package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

// collector records every snapshot a listener receives.
type collector struct {
	mu    sync.Mutex
	snaps []Snapshot
	ch    chan Snapshot
}

func newCollector() *collector {
	return &collector{ch: make(chan Snapshot, 100)}
}

func (c *collector) listen(s Snapshot) {
	c.mu.Lock()
	c.snaps = append(c.snaps, s)
	c.mu.Unlock()
	c.ch <- s
}

func (c *collector) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-c.ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Snapshot{}
	}
}

func (c *collector) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case s := <-c.ch:
		t.Fatalf("unexpected notification: %+v", s)
	case <-time.After(d):
	}
}

func openStore(t *testing.T, path string, opts *Options) *Store {
	t.Helper()
	s, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestValidatePath(t *testing.T) {
	valid := []string{"trekkers", "tasks/Alice", "packing-items", "a/b/c", "flight-prices", "émoji 🥾"}
	for _, p := range valid {
		if err := ValidatePath(p); err != nil {
			t.Errorf("ValidatePath(%q) = %v, want nil", p, err)
		}
	}
	invalid := []string{"", "/tasks", "tasks/", "a//b", "a.b", "a#b", "a$b", "a[0]", "a]", "tab\there", string(make([]byte, MaxPathBytes+1))}
	for _, p := range invalid {
		if err := ValidatePath(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("ValidatePath(%q) = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Get absent", func(t *testing.T) {
		s := openStore(t, "", nil)
		snap, err := s.Get("tasks")
		if err != nil {
			t.Fatal(err)
		}
		if snap.Exists() || snap.Rev != 0 || snap.Path != "tasks" {
			t.Errorf("Get() = %+v, want absent", snap)
		}
	})

	t.Run("Set and Get", func(t *testing.T) {
		s := openStore(t, "", nil)
		snap, err := s.Set(ctx, "tasks", json.RawMessage(`[ {"id": 1,  "title":"Book"} ]`))
		if err != nil {
			t.Fatal(err)
		}
		if snap.Rev != 1 {
			t.Errorf("Rev = %d, want 1", snap.Rev)
		}
		if got := string(snap.Value); got != `[{"id":1,"title":"Book"}]` {
			t.Errorf("Value = %s", got)
		}
		got, _ := s.Get("tasks")
		if string(got.Value) != string(snap.Value) || got.Rev != 1 {
			t.Errorf("Get() = %+v", got)
		}
		if paths := s.Paths(); !slices.Equal(paths, []string{"tasks"}) {
			t.Errorf("Paths() = %v", paths)
		}
	})

	t.Run("null clears", func(t *testing.T) {
		s := openStore(t, "", nil)
		if _, err := s.Set(ctx, "chat", json.RawMessage(`[]`)); err != nil {
			t.Fatal(err)
		}
		snap, err := s.Set(ctx, "chat", json.RawMessage(`null`))
		if err != nil {
			t.Fatal(err)
		}
		if snap.Exists() || snap.Rev != 2 {
			t.Errorf("Set(null) = %+v", snap)
		}
		if len(s.Paths()) != 0 {
			t.Errorf("Paths() = %v, want empty", s.Paths())
		}
	})

	t.Run("errors", func(t *testing.T) {
		s := openStore(t, "", &Options{MaxDocumentBytes: 16})
		tests := []struct {
			name  string
			path  string
			value string
			want  error
		}{
			{"bad path", "a.b", `1`, ErrInvalidPath},
			{"bad json", "a", `{`, ErrInvalidDocument},
			{"too large", "a", `"0123456789abcdefghij"`, ErrDocumentTooLarge},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := s.Set(ctx, tt.path, json.RawMessage(tt.value)); !errors.Is(err, tt.want) {
					t.Errorf("Set() = %v, want %v", err, tt.want)
				}
			})
		}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := s.Set(cctx, "a", json.RawMessage(`1`)); !errors.Is(err, context.Canceled) {
			t.Errorf("Set(canceled) = %v", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		s, err := Open("", nil)
		if err != nil {
			t.Fatal(err)
		}
		_ = s.Close()
		if _, err := s.Set(ctx, "a", json.RawMessage(`1`)); !errors.Is(err, ErrClosed) {
			t.Errorf("Set() = %v, want ErrClosed", err)
		}
		if _, err := s.Subscribe("a", func(Snapshot) {}); !errors.Is(err, ErrClosed) {
			t.Errorf("Subscribe() = %v, want ErrClosed", err)
		}
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("initial absent then changes in order", func(t *testing.T) {
		s := openStore(t, "", nil)
		c := newCollector()
		sub, err := s.Subscribe("trekkers", c.listen)
		if err != nil {
			t.Fatal(err)
		}
		defer sub.Close()
		if first := c.next(t); first.Exists() {
			t.Fatalf("first notification = %+v, want absent", first)
		}
		for i := range 50 {
			if _, err := s.Set(ctx, "trekkers", json.RawMessage(fmt.Sprint(i))); err != nil {
				t.Fatal(err)
			}
		}
		for i := range 50 {
			got := c.next(t)
			if string(got.Value) != fmt.Sprint(i) || got.Rev != uint64(i+1) {
				t.Fatalf("notification %d = %+v", i, got)
			}
		}
	})

	t.Run("paths are independent", func(t *testing.T) {
		s := openStore(t, "", nil)
		c := newCollector()
		sub, err := s.Subscribe("tasks", c.listen)
		if err != nil {
			t.Fatal(err)
		}
		defer sub.Close()
		c.next(t)
		if _, err := s.Set(ctx, "tasks/Alice", json.RawMessage(`[]`)); err != nil {
			t.Fatal(err)
		}
		c.none(t, 50*time.Millisecond)
	})

	t.Run("fan-out to every subscriber", func(t *testing.T) {
		s := openStore(t, "", nil)
		var cs []*collector
		for range 3 {
			c := newCollector()
			sub, err := s.Subscribe("chat", c.listen)
			if err != nil {
				t.Fatal(err)
			}
			defer sub.Close()
			c.next(t)
			cs = append(cs, c)
		}
		if s.Subscribers("chat") != 3 {
			t.Errorf("Subscribers() = %d, want 3", s.Subscribers("chat"))
		}
		if _, err := s.Set(ctx, "chat", json.RawMessage(`["hi"]`)); err != nil {
			t.Fatal(err)
		}
		for _, c := range cs {
			if got := c.next(t); string(got.Value) != `["hi"]` {
				t.Errorf("got %s", got.Value)
			}
		}
	})

	t.Run("no delivery after Close", func(t *testing.T) {
		s := openStore(t, "", nil)
		c := newCollector()
		sub, err := s.Subscribe("flights", c.listen)
		if err != nil {
			t.Fatal(err)
		}
		c.next(t)
		sub.Close()
		sub.Close()
		if s.Subscribers("flights") != 0 {
			t.Errorf("Subscribers() = %d, want 0", s.Subscribers("flights"))
		}
		if _, err := s.Set(ctx, "flights", json.RawMessage(`[]`)); err != nil {
			t.Fatal(err)
		}
		c.none(t, 50*time.Millisecond)
	})

	t.Run("Close from listener", func(t *testing.T) {
		s := openStore(t, "", nil)
		done := make(chan struct{})
		var sub *Subscription
		var mu sync.Mutex
		mu.Lock()
		sub, err := s.Subscribe("x", func(Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			sub.Close()
			close(done)
		})
		if err != nil {
			t.Fatal(err)
		}
		mu.Unlock()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("listener never ran")
		}
	})
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "documents.jsonl")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "trekkers", json.RawMessage(`[{"name":"Alice"}]`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "trekkers", json.RawMessage(`[{"name":"Bob"}]`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "chat", json.RawMessage(`[]`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "chat", nil); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s2 := openStore(t, path, nil)
	got, err := s2.Get("trekkers")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Value) != `[{"name":"Bob"}]` || got.Rev != 2 {
		t.Errorf("reloaded trekkers = %+v", got)
	}
	if chat, _ := s2.Get("chat"); chat.Exists() {
		t.Errorf("reloaded chat = %+v, want absent", chat)
	}
}

func TestCompaction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "documents.jsonl")
	s := openStore(t, path, &Options{CompactRatio: 2})
	for i := range minCompactRecords + 10 {
		if _, err := s.Set(ctx, "tasks", json.RawMessage(fmt.Sprint(i))); err != nil {
			t.Fatal(err)
		}
	}
	if n := s.table.Len(); n >= minCompactRecords {
		t.Errorf("log has %d records after compaction", n)
	}
	s2 := openStore(t, path, nil)
	got, _ := s2.Get("tasks")
	want := fmt.Sprint(minCompactRecords + 9)
	if string(got.Value) != want || got.Rev != uint64(minCompactRecords+10) {
		t.Errorf("after compaction Get() = %+v, want value %s", got, want)
	}
}

func TestCompactionKeepsDeletedRevisions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "documents.jsonl")
	s := openStore(t, path, &Options{CompactRatio: 2})
	for i := range 10 {
		if _, err := s.Set(ctx, "chat", json.RawMessage(fmt.Sprint(i))); err != nil {
			t.Fatal(err)
		}
	}
	deleted, err := s.Set(ctx, "chat", nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range minCompactRecords + 10 {
		if _, err := s.Set(ctx, "tasks", json.RawMessage(fmt.Sprint(i))); err != nil {
			t.Fatal(err)
		}
	}
	if n := s.table.Len(); n >= minCompactRecords {
		t.Fatalf("log has %d records, compaction did not run", n)
	}
	if paths := s.Paths(); len(paths) != 1 || paths[0] != "tasks" {
		t.Errorf("Paths() = %v", paths)
	}

	s2 := openStore(t, path, nil)
	if got, _ := s2.Get("chat"); got.Exists() || got.Rev != deleted.Rev {
		t.Fatalf("reloaded chat = %+v, want absent at rev %d", got, deleted.Rev)
	}
	snap, err := s2.Set(ctx, "chat", json.RawMessage(`["back"]`))
	if err != nil {
		t.Fatal(err)
	}
	if snap.Rev != deleted.Rev+1 {
		t.Errorf("rev after reopen = %d, want %d", snap.Rev, deleted.Rev+1)
	}
}
