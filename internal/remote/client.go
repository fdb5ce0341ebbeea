package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/maruel/treksync/internal/docstore"
	"github.com/maruel/treksync/internal/wire"
)

// ErrClientClosed is reported to pending operations when the client is closed.
var ErrClientClosed = errors.New("client closed")

// ClientOptions configures Dial.
type ClientOptions struct {
	// Token is sent as a bearer token when non-empty.
	Token string
	// Codec selects the wire encoding. nil means wire.JSON.
	Codec wire.Codec
	// WriteTimeout bounds a single frame write. 0 means 10s.
	WriteTimeout time.Duration
}

// Client is a Store backed by a treksync server over one WebSocket.
//
// Subscriptions to the same path share a single server-side subscription;
// each local subscriber still gets its own ordered callbacks.
type Client struct {
	conn  *websocket.Conn
	codec wire.Codec
	opts  ClientOptions
	done  chan struct{}

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan error
	paths   map[string]*sharedSub
	ids     map[uint64]*sharedSub
	err     error
}

// sharedSub is one server-side subscription fanned out to local subscribers.
type sharedSub struct {
	id        uint64
	path      string
	last      *Snapshot
	listeners map[*clientSub]struct{}
}

type clientSub struct {
	c       *Client
	sh      *sharedSub
	box     *mailbox
	onValue func(Snapshot)
	onError func(error)
	once    sync.Once
}

// Dial connects to the WebSocket endpoint at url, e.g.
// "ws://localhost:8080/api/v1/ws".
func Dial(ctx context.Context, url string, opts *ClientOptions) (*Client, error) {
	c := &Client{
		done:    make(chan struct{}),
		pending: make(map[uint64]chan error),
		paths:   make(map[string]*sharedSub),
		ids:     make(map[uint64]*sharedSub),
	}
	if opts != nil {
		c.opts = *opts
	}
	c.codec = c.opts.Codec
	if c.codec == nil {
		c.codec = wire.JSON
	}
	if c.opts.WriteTimeout <= 0 {
		c.opts.WriteTimeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{c.codec.Name()},
	}
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	if got := conn.Subprotocol(); got != c.codec.Name() {
		_ = conn.Close()
		return nil, fmt.Errorf("server does not speak %s (got %q)", c.codec.Name(), got)
	}
	c.conn = conn
	go c.readLoop()
	return c, nil
}

// Subscribe implements Store.
func (c *Client) Subscribe(path string, onValue func(Snapshot), onError func(error)) (Subscription, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	sh := c.paths[path]
	isNew := sh == nil
	if isNew {
		c.nextID++
		sh = &sharedSub{id: c.nextID, path: path, listeners: make(map[*clientSub]struct{})}
		c.paths[path] = sh
		c.ids[sh.id] = sh
	}
	cs := &clientSub{c: c, sh: sh, box: newMailbox(), onValue: onValue, onError: onError}
	sh.listeners[cs] = struct{}{}
	if sh.last != nil {
		snap := *sh.last
		cs.box.post(func() { onValue(snap) })
	}
	c.mu.Unlock()

	if isNew {
		if err := c.send(&wire.Frame{Op: wire.OpSub, ID: sh.id, Path: path}); err != nil {
			cs.Close()
			c.fail(err)
			return nil, err
		}
	}
	return cs, nil
}

// Set implements Store. It returns once the server acknowledged the write.
func (c *Client) Set(ctx context.Context, path string, value json.RawMessage) error {
	if err := docstore.ValidatePath(path); err != nil {
		return err
	}
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan error, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(&wire.Frame{Op: wire.OpSet, ID: id, Path: path, Value: value}); err != nil {
		c.forget(id)
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

// Close shuts the connection down. Pending writes fail with ErrClientClosed
// and every subscriber's onError is called.
func (c *Client) Close() error {
	c.fail(ErrClientClosed)
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) send(f *wire.Frame) error {
	data, err := c.codec.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(c.codec.MessageType(), data)
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("connection lost: %w", err))
			return
		}
		var f wire.Frame
		if err := c.codec.Unmarshal(data, &f); err != nil {
			slog.Warn("Dropping malformed frame", "err", err)
			continue
		}
		c.dispatch(&f)
	}
}

func (c *Client) dispatch(f *wire.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch f.Op {
	case wire.OpAck:
		if ch, ok := c.pending[f.ID]; ok {
			delete(c.pending, f.ID)
			ch <- nil
		}
	case wire.OpValue:
		sh, ok := c.ids[f.ID]
		if !ok {
			// Late frame for a released subscription.
			return
		}
		snap := Snapshot{Path: sh.path, Rev: f.Rev, UpdatedAt: f.At}
		if len(f.Value) != 0 && string(f.Value) != "null" {
			snap.Value = f.Value
		}
		sh.last = &snap
		for cs := range sh.listeners {
			cs.box.post(func() { cs.onValue(snap) })
		}
	case wire.OpError:
		err := fmt.Errorf("remote: %s", f.Error)
		if ch, ok := c.pending[f.ID]; ok {
			delete(c.pending, f.ID)
			ch <- err
			return
		}
		if sh, ok := c.ids[f.ID]; ok {
			delete(c.ids, f.ID)
			delete(c.paths, sh.path)
			for cs := range sh.listeners {
				cs.terminate(err)
			}
		}
	default:
		slog.Warn("Unexpected frame from server", "op", f.Op, "id", f.ID)
	}
}

// fail records the first fatal error and releases everything waiting on the
// connection.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- err
	}
	for _, sh := range c.ids {
		for cs := range sh.listeners {
			cs.terminate(err)
		}
	}
	c.ids = make(map[uint64]*sharedSub)
	c.paths = make(map[string]*sharedSub)
}

// terminate delivers err as the final callback. Must be called with c.mu held.
func (cs *clientSub) terminate(err error) {
	delete(cs.sh.listeners, cs)
	if cs.onError == nil {
		cs.box.stop()
		return
	}
	cs.box.finish(func() { cs.onError(err) })
}

// Close implements Subscription.
func (cs *clientSub) Close() {
	cs.once.Do(func() {
		c := cs.c
		c.mu.Lock()
		delete(cs.sh.listeners, cs)
		release := len(cs.sh.listeners) == 0 && c.ids[cs.sh.id] == cs.sh
		if release {
			delete(c.ids, cs.sh.id)
			delete(c.paths, cs.sh.path)
		}
		alive := c.err == nil
		c.mu.Unlock()
		cs.box.stop()
		if release && alive {
			if err := c.send(&wire.Frame{Op: wire.OpUnsub, ID: cs.sh.id}); err != nil {
				slog.Debug("Failed to send unsubscribe", "path", cs.sh.path, "err", err)
			}
		}
	})
}
