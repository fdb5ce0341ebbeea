package prefs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFunctionalUpdate(t *testing.T) {
	m := &MemoryBackend{}
	p := Open(m, "count", 0)
	p.Update(func(n int) int { return n + 1 })
	p.Update(func(n int) int { return n + 1 })
	if got := p.Value(); got != 2 {
		t.Fatalf("Value() = %d, want 2", got)
	}
	raw, ok, err := m.Get("count")
	if err != nil || !ok {
		t.Fatalf("Get() = %q, %v, %v", raw, ok, err)
	}
	if raw != "2" {
		t.Fatalf("stored %q, want %q", raw, "2")
	}
}

func TestUpdateReadsPref(t *testing.T) {
	p := Open(&MemoryBackend{}, "name", "maya")
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Update(func(prev string) string { return prev + "/" + p.Value() })
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Update deadlocked when fn read the preference")
	}
	if got := p.Value(); got != "maya/maya" {
		t.Fatalf("Value() = %q", got)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	m := &MemoryBackend{}
	p := Open(m, "count", 0)
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			p.Update(func(n int) int { return n + 1 })
		})
	}
	wg.Wait()
	if got := p.Value(); got != 50 {
		t.Fatalf("Value() = %d, want 50", got)
	}
	if raw, _, _ := m.Get("count"); raw != "50" {
		t.Fatalf("stored %q, want 50", raw)
	}
}

func TestOpenFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		set    bool
	}{
		{"absent", "", false},
		{"not json", "{oops", true},
		{"wrong type", `"text"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MemoryBackend{}
			if tt.set {
				if err := m.Set("n", tt.stored); err != nil {
					t.Fatal(err)
				}
			}
			p := Open(m, "n", 7)
			if got := p.Value(); got != 7 {
				t.Fatalf("Value() = %d, want default 7", got)
			}
			raw, _, _ := m.Get("n")
			if raw != tt.stored {
				t.Fatalf("default written back: %q", raw)
			}
		})
	}
}

func TestQuotaKeepsMemory(t *testing.T) {
	m := &MemoryBackend{Capacity: 16}
	p := Open(m, "name", "")
	p.Set("a name far too long to fit")
	if got := p.Value(); got != "a name far too long to fit" {
		t.Fatalf("Value() = %q", got)
	}
	if _, ok, _ := m.Get("name"); ok {
		t.Fatal("value persisted past quota")
	}
	if err := m.Set("name", strings.Repeat("x", 32)); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Set() = %v, want ErrQuotaExceeded", err)
	}
}

func TestFileBackend(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFile(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	Open(f, "trek-username", "").Set("Alice")
	Open(f, "visits", 0).Update(func(n int) int { return n + 3 })

	f2, err := OpenFile(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := Open(f2, "trek-username", "").Value(); got != "Alice" {
		t.Fatalf("username = %q, want Alice", got)
	}
	if got := Open(f2, "visits", 0).Value(); got != 3 {
		t.Fatalf("visits = %d, want 3", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != FileName {
		t.Fatalf("unexpected files in profile dir: %v", entries)
	}
}

func TestFileBackendQuota(t *testing.T) {
	f, err := OpenFile(t.TempDir(), 32)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Set("k", "small"); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("k", strings.Repeat("x", 64)); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Set() = %v, want ErrQuotaExceeded", err)
	}
	v, _, _ := f.Get("k")
	if v != "small" {
		t.Fatalf("Get() = %q after failed Set, want previous value", v)
	}
}

func TestFileBackendCorrupted(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := OpenFile(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := Open(f, "trek-username", "nobody").Value(); got != "nobody" {
		t.Fatalf("Value() = %q, want default", got)
	}
	if err := f.Set("trek-username", `"Bob"`); err != nil {
		t.Fatal(err)
	}
}
