package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/maruel/treksync/internal/jsonldb"
)

var (
	// ErrInvalidPath is returned for malformed document paths.
	ErrInvalidPath = errors.New("invalid path")
	// ErrDocumentTooLarge is returned when a document exceeds Options.MaxDocumentBytes.
	ErrDocumentTooLarge = errors.New("document too large")
	// ErrInvalidDocument is returned when a value is not valid JSON.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Snapshot is the state of one path at one point in time.
type Snapshot struct {
	Path string `json:"path"`
	// Value is the whole document, nil when the path holds nothing.
	Value     json.RawMessage `json:"value"`
	Rev       uint64          `json:"rev,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitzero"`
}

// Exists reports whether the path holds a document.
func (s *Snapshot) Exists() bool {
	return s.Value != nil
}

// Options configures a Store.
type Options struct {
	// MaxDocumentBytes bounds the compacted JSON size of a document. 0 means
	// DefaultMaxDocumentBytes.
	MaxDocumentBytes int
	// CompactRatio triggers log compaction when the log holds more than this
	// many records per path. 0 means DefaultCompactRatio.
	CompactRatio int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	// DefaultMaxDocumentBytes is the default document size limit.
	DefaultMaxDocumentBytes = 1 << 20
	// DefaultCompactRatio is the default log-to-documents ratio.
	DefaultCompactRatio = 4
	// minCompactRecords avoids rewriting tiny logs over and over.
	minCompactRecords = 64
)

// record is one line of the write log. A null Value is a deletion.
type record struct {
	Path  string          `json:"path"`
	Rev   uint64          `json:"rev"`
	Value json.RawMessage `json:"value"`
	At    time.Time       `json:"at"`
}

// Store is a concurrent-safe, path-addressed document store.
type Store struct {
	opts  Options
	table *jsonldb.Table[record] // nil for memory-only stores

	mu     sync.Mutex
	docs   map[string]Snapshot
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// Open loads the store persisted at path, creating it if needed.
//
// An empty path creates a memory-only store.
func Open(path string, opts *Options) (*Store, error) {
	s := &Store{
		docs: make(map[string]Snapshot),
		subs: make(map[string]map[*Subscription]struct{}),
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.MaxDocumentBytes <= 0 {
		s.opts.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if s.opts.CompactRatio <= 0 {
		s.opts.CompactRatio = DefaultCompactRatio
	}
	if s.opts.Now == nil {
		s.opts.Now = time.Now
	}
	if path == "" {
		return s, nil
	}
	table, err := jsonldb.NewTable[record](path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document log: %w", err)
	}
	s.table = table
	for r := range table.All() {
		if prev, ok := s.docs[r.Path]; ok && prev.Rev > r.Rev {
			// Out of order lines only come from manual edits; keep the newest.
			continue
		}
		s.docs[r.Path] = snapshotOf(&r)
	}
	slog.Debug("Loaded document store", "path", path, "records", table.Len(), "documents", s.live())
	return s, nil
}

func snapshotOf(r *record) Snapshot {
	snap := Snapshot{Path: r.Path, Rev: r.Rev, UpdatedAt: r.At}
	if !isNull(r.Value) {
		snap.Value = r.Value
	}
	return snap
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

// Get returns the current snapshot of path.
func (s *Store) Get(path string) (Snapshot, error) {
	if err := ValidatePath(path); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	return s.get(path), nil
}

func (s *Store) get(path string) Snapshot {
	if snap, ok := s.docs[path]; ok {
		return snap
	}
	return Snapshot{Path: path}
}

// Set replaces the whole document at path with value.
//
// A JSON null value clears the path. Every subscriber of path is notified,
// the writer included.
func (s *Store) Set(ctx context.Context, path string, value json.RawMessage) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := ValidatePath(path); err != nil {
		return Snapshot{}, err
	}
	var buf bytes.Buffer
	if len(value) == 0 {
		buf.WriteString("null")
	} else if err := json.Compact(&buf, value); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if buf.Len() > s.opts.MaxDocumentBytes {
		return Snapshot{}, fmt.Errorf("%w: %d bytes, limit %d", ErrDocumentTooLarge, buf.Len(), s.opts.MaxDocumentBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	prev := s.get(path)
	r := record{Path: path, Rev: prev.Rev + 1, Value: buf.Bytes(), At: s.opts.Now().UTC()}
	if s.table != nil {
		if err := s.table.Append(r); err != nil {
			return Snapshot{}, err
		}
	}
	snap := snapshotOf(&r)
	s.docs[path] = snap
	for sub := range s.subs[path] {
		sub.push(snap)
	}
	slog.DebugContext(ctx, "Document written", "path", path, "rev", snap.Rev, "bytes", buf.Len())
	s.maybeCompact()
	return snap, nil
}

// Paths returns the sorted paths that currently hold a document.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p, snap := range s.docs {
		if snap.Exists() {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// Subscribe registers fn for every change of path.
//
// fn is first called with the current snapshot, absent documents included.
// Calls are sequential and in the order the store accepted the writes. fn
// must not block for long; it runs on the subscription's own goroutine.
func (s *Store) Subscribe(path string, fn Listener) (*Subscription, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	sub := newSubscription(s, path, fn)
	m := s.subs[path]
	if m == nil {
		m = make(map[*Subscription]struct{})
		s.subs[path] = m
	}
	m[sub] = struct{}{}
	sub.push(s.get(path))
	go sub.run()
	return sub, nil
}

func (s *Store) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.subs[sub.path]; m != nil {
		delete(m, sub)
		if len(m) == 0 {
			delete(s.subs, sub.path)
		}
	}
}

// Subscribers returns the number of live subscriptions on path.
func (s *Store) Subscribers(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[path])
}

// MaxDocumentBytes returns the effective document size limit.
func (s *Store) MaxDocumentBytes() int {
	return s.opts.MaxDocumentBytes
}

// Close releases every subscription. Further operations return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var all []*Subscription
	for _, m := range s.subs {
		for sub := range m {
			all = append(all, sub)
		}
	}
	s.subs = make(map[string]map[*Subscription]struct{})
	s.mu.Unlock()
	for _, sub := range all {
		sub.stop()
	}
	return nil
}

func (s *Store) live() int {
	n := 0
	for _, snap := range s.docs {
		if snap.Exists() {
			n++
		}
	}
	return n
}

// maybeCompact rewrites the log when it holds too many superseded records.
// Deleted paths keep a null record so their revision survives a reopen.
// Must be called with s.mu held.
func (s *Store) maybeCompact() {
	if s.table == nil {
		return
	}
	n := s.table.Len()
	if n < minCompactRecords || n <= s.opts.CompactRatio*max(len(s.docs), 1) {
		return
	}
	rows := make([]record, 0, len(s.docs))
	for _, snap := range s.docs {
		rows = append(rows, record{Path: snap.Path, Rev: snap.Rev, Value: snap.Value, At: snap.UpdatedAt})
	}
	slices.SortFunc(rows, func(a, b record) int { return a.At.Compare(b.At) })
	if err := s.table.Replace(rows); err != nil {
		slog.Error("Failed to compact document log", "path", s.table.Path(), "err", err)
		return
	}
	slog.Info("Compacted document log", "path", s.table.Path(), "before", n, "after", len(rows))
}
