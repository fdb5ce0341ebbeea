// Package remote defines the contract between bindings and a realtime
// document store, with an in-process implementation and a WebSocket client.
package remote

import (
	"context"
	"encoding/json"

	"github.com/maruel/treksync/internal/docstore"
)

// Snapshot is a whole document at one path. A nil Value means the path holds
// nothing.
type Snapshot = docstore.Snapshot

// Store is a path-addressed document store with whole-document writes.
type Store interface {
	// Subscribe calls onValue with the current document at path, then again
	// on every change, until the returned Subscription is closed. onError is
	// called when the subscription fails; no further calls follow it.
	Subscribe(path string, onValue func(Snapshot), onError func(error)) (Subscription, error)
	// Set replaces the whole document at path. A nil or JSON null value
	// clears it.
	Set(ctx context.Context, path string, value json.RawMessage) error
}

// Subscription is a live registration returned by Store.Subscribe.
type Subscription interface {
	// Close releases the subscription. It is safe to call more than once.
	Close()
}

// Local adapts an in-process docstore.Store to the Store contract.
type Local struct {
	Store *docstore.Store
}

// Subscribe implements Store.
func (l *Local) Subscribe(path string, onValue func(Snapshot), _ func(error)) (Subscription, error) {
	sub, err := l.Store.Subscribe(path, onValue)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Set implements Store.
func (l *Local) Set(ctx context.Context, path string, value json.RawMessage) error {
	_, err := l.Store.Set(ctx, path, value)
	return err
}
