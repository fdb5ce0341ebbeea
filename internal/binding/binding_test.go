package binding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maruel/treksync/internal/docstore"
	"github.com/maruel/treksync/internal/remote"
	"github.com/maruel/treksync/internal/remote/remotetest"
)

type task struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type tasks []task

func (t tasks) Validate() error {
	for i := range t {
		if t[i].ID == "" {
			return fmt.Errorf("task %d: missing id", i)
		}
	}
	return nil
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRoundTrip(t *testing.T) {
	ctx := testContext(t)
	f := remotetest.New()
	b := New(f, "tasks", tasks{})
	defer b.Close()

	if b.Loading() {
		t.Fatal("expected loaded after synchronous initial delivery")
	}
	if got := b.State(); got != Empty {
		t.Fatalf("State() = %v, want %v", got, Empty)
	}
	want := tasks{{ID: "1", Text: "buy boots"}}
	b.Update(want)
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	got := b.Value()
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("Value() = %+v, want %+v", got, want)
	}
	if b.State() != Populated {
		t.Fatalf("State() = %v, want %v", b.State(), Populated)
	}
	if string(f.Document("tasks")) != `[{"id":"1","text":"buy boots"}]` {
		t.Fatalf("stored %s", f.Document("tasks"))
	}
}

func TestDefaultForAbsentDocument(t *testing.T) {
	tests := []struct {
		name  string
		value json.RawMessage
	}{
		{"missing", nil},
		{"cleared", json.RawMessage("null")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := remotetest.New()
			f.Emit("count", json.RawMessage("5"))
			b := New(f, "count", 42)
			defer b.Close()
			if got := b.Value(); got != 5 {
				t.Fatalf("Value() = %d, want 5", got)
			}
			f.Emit("count", tt.value)
			if got := b.Value(); got != 42 {
				t.Fatalf("Value() = %d, want default 42", got)
			}
			if b.State() != Empty {
				t.Fatalf("State() = %v, want %v", b.State(), Empty)
			}
		})
	}
}

func TestUpdateDoesNotChangeValueBeforeEcho(t *testing.T) {
	ctx := testContext(t)
	f := remotetest.New()
	f.HoldEchoes(true)
	b := New(f, "n", 0)
	defer b.Close()

	b.Update(7)
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := b.Value(); got != 0 {
		t.Fatalf("Value() = %d before echo, want 0", got)
	}
	f.Flush()
	if got := b.Value(); got != 7 {
		t.Fatalf("Value() = %d after echo, want 7", got)
	}
}

func TestLastWriteWins(t *testing.T) {
	ctx := testContext(t)
	f := remotetest.New()
	f.HoldEchoes(true)
	a := New(f, "tasks", tasks{})
	defer a.Close()
	b := New(f, "tasks", tasks{})
	defer b.Close()

	// Both sessions read the same empty list and append their own item.
	a.Update(append(a.Value(), task{ID: "a", Text: "from a"}))
	if err := a.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	b.Update(append(b.Value(), task{ID: "b", Text: "from b"}))
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	f.Flush()

	for i, bd := range []*Binding[tasks]{a, b} {
		got := bd.Value()
		if len(got) != 1 || got[0].ID != "b" {
			t.Fatalf("binding %d: Value() = %+v, want only the later write", i, got)
		}
	}
}

func TestWritesKeepCallOrder(t *testing.T) {
	ctx := testContext(t)
	f := remotetest.New()
	b := New(f, "n", 0)
	defer b.Close()
	for i := 1; i <= 20; i++ {
		b.Update(i)
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	w := f.Writes()
	if len(w) != 20 {
		t.Fatalf("got %d writes, want 20", len(w))
	}
	for i, x := range w {
		if want := fmt.Sprint(i + 1); string(x.Value) != want {
			t.Fatalf("write %d = %s, want %s", i, x.Value, want)
		}
	}
	if got := b.Value(); got != 20 {
		t.Fatalf("Value() = %d, want 20", got)
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	f := remotetest.New()
	b := New(f, "n", 0)
	if f.Subscribers("n") != 1 {
		t.Fatalf("Subscribers() = %d, want 1", f.Subscribers("n"))
	}
	b.Close()
	b.Close()
	if f.Subscribers("n") != 0 {
		t.Fatalf("Subscribers() = %d after Close, want 0", f.Subscribers("n"))
	}
	before := f.Delivered()
	f.Emit("n", json.RawMessage("3"))
	if f.Delivered() != before {
		t.Fatal("notification delivered after Close")
	}
	if b.Value() != 0 {
		t.Fatalf("Value() = %d after Close, want 0", b.Value())
	}
}

func TestCloseStillCompletesWrites(t *testing.T) {
	ctx := testContext(t)
	f := remotetest.New()
	b := New(f, "n", 0)
	b.Update(9)
	b.Close()
	if err := f.WaitWrites(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if string(f.Document("n")) != "9" {
		t.Fatalf("stored %s, want 9", f.Document("n"))
	}
}

func TestSubscribeFailure(t *testing.T) {
	f := remotetest.New()
	f.FailSubscribes(errors.New("permission denied"))
	b := New(f, "n", 4)
	defer b.Close()
	if b.Loading() {
		t.Fatal("Loading() should clear on error")
	}
	if b.Value() != 4 || b.State() != Unloaded {
		t.Fatalf("Value() = %d State() = %v", b.Value(), b.State())
	}
}

func TestSubscriptionError(t *testing.T) {
	f := remotetest.New()
	f.Emit("n", json.RawMessage("1"))
	b := New(f, "n", 0)
	defer b.Close()
	f.FailSubscription("n", errors.New("revoked"))
	if b.Value() != 1 {
		t.Fatalf("Value() = %d, want last known 1", b.Value())
	}
}

func TestWriteFailureKeepsValue(t *testing.T) {
	ctx := testContext(t)
	f := remotetest.New()
	f.Emit("n", json.RawMessage("1"))
	b := New(f, "n", 0)
	defer b.Close()
	f.FailSets(errors.New("offline"))
	b.Update(2)
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if b.Value() != 1 {
		t.Fatalf("Value() = %d, want 1", b.Value())
	}
	f.FailSets(nil)
	b.Update(3)
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if b.Value() != 3 {
		t.Fatalf("Value() = %d, want 3", b.Value())
	}
}

func TestRejectsInvalidDocument(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"wrong shape", `{"id":"1"}`},
		{"failed validation", `[{"text":"no id"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := remotetest.New()
			f.Emit("tasks", json.RawMessage(`[{"id":"1","text":"ok"}]`))
			b := New(f, "tasks", tasks{})
			defer b.Close()
			f.Emit("tasks", json.RawMessage(tt.value))
			got := b.Value()
			if len(got) != 1 || got[0].ID != "1" {
				t.Fatalf("Value() = %+v, want previous document", got)
			}
		})
	}
}

func TestObserve(t *testing.T) {
	f := remotetest.New()
	b := New(f, "n", 0)
	defer b.Close()
	calls := 0
	cancel := b.Observe(func() { calls++ })
	f.Emit("n", json.RawMessage("1"))
	f.Emit("n", json.RawMessage("2"))
	cancel()
	f.Emit("n", json.RawMessage("3"))
	if calls != 2 {
		t.Fatalf("observer called %d times, want 2", calls)
	}
}

func TestCloseFromObserver(t *testing.T) {
	for range 200 {
		f := remotetest.New()
		b := New(f, "n", 0)
		closed := false
		late := 0
		// Registration order is call order, so the first observer closes
		// before the second one would run.
		b.Observe(func() {
			b.Close()
			closed = true
		})
		b.Observe(func() {
			if closed {
				late++
			}
		})
		f.Emit("n", json.RawMessage("1"))
		if late != 0 {
			t.Fatal("observer ran after Close returned")
		}
	}
}

func TestCloseFromOtherGoroutine(t *testing.T) {
	ctx := testContext(t)
	st, err := docstore.Open("", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	b := New(&remote.Local{Store: st}, "n", 0)
	if err := b.WaitLoaded(ctx); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	b.Observe(func() { calls.Add(1) })
	for i := range 50 {
		if _, err := st.Set(ctx, "n", json.RawMessage(fmt.Sprint(i+1))); err != nil {
			t.Fatal(err)
		}
	}
	for calls.Load() != 50 {
		select {
		case <-ctx.Done():
			t.Fatal(ctx.Err())
		case <-time.After(time.Millisecond):
		}
	}
	b.Close()
	before := calls.Load()
	for i := range 50 {
		if _, err := st.Set(ctx, "n", json.RawMessage(fmt.Sprint(100+i))); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(20 * time.Millisecond)
	if after := calls.Load(); after != before {
		t.Fatalf("observer started %d times after Close", after-before)
	}
	if b.Value() != 50 {
		t.Fatalf("Value() = %d after Close, want 50", b.Value())
	}
}

func TestWaitLoadedOverLocalStore(t *testing.T) {
	ctx := testContext(t)
	st, err := docstore.Open("", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.Set(ctx, "n", json.RawMessage("11")); err != nil {
		t.Fatal(err)
	}
	b := New(&remote.Local{Store: st}, "n", 0)
	defer b.Close()
	if err := b.WaitLoaded(ctx); err != nil {
		t.Fatal(err)
	}
	if b.Value() != 11 {
		t.Fatalf("Value() = %d, want 11", b.Value())
	}

	// Echo arrives asynchronously through the subscription mailbox.
	changed := make(chan struct{}, 8)
	cancel := b.Observe(func() { changed <- struct{}{} })
	defer cancel()
	b.Update(12)
	for b.Value() != 12 {
		select {
		case <-changed:
		case <-ctx.Done():
			t.Fatal(ctx.Err())
		}
	}
}
