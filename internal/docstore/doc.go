// Package docstore is the authoritative realtime document store.
//
// # Overview
//
// A [Store] holds one JSON document per path. Writes replace the whole
// document; there is no patching and no version check, so the last write the
// store accepts is the value every subscriber converges to.
//
// # Subscriptions
//
// [Store.Subscribe] delivers the current document immediately, then every
// accepted change, including changes made by the subscriber itself. Each
// subscription has its own delivery goroutine and unbounded mailbox: a slow
// listener delays only itself, and notifications arrive in accept order.
//
// # Persistence
//
// Accepted writes are appended to a JSONL log (see package jsonldb). On open
// the log is replayed, keeping the latest record per path. The log is
// compacted to one record per live document once it grows past
// [Options.CompactRatio] records per document.
package docstore
