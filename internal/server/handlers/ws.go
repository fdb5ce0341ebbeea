package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/maruel/treksync/internal/docstore"
	"github.com/maruel/treksync/internal/server/reqctx"
	"github.com/maruel/treksync/internal/wire"
)

const (
	writeWait = 10 * time.Second
	// sendQueue is the number of outbound frames buffered per connection.
	sendQueue = 64
	// frameOverhead is what a set frame may add around its document.
	frameOverhead = 4096
)

// WSHandler serves the realtime protocol: subscriptions push every new
// snapshot of a path and set frames write documents.
type WSHandler struct {
	svc      *Services
	upgrader websocket.Upgrader
	ping     time.Duration
	maxSubs  int
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(svc *Services) *WSHandler {
	return &WSHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     wire.Subprotocols(),
		},
		ping:    time.Duration(svc.Config.WebSocket.PingIntervalSec) * time.Second,
		maxSubs: svc.Config.WebSocket.MaxSubscriptions,
	}
}

// ServeHTTP upgrades the request and runs the session until either side
// closes it or ctx is canceled.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		slog.WarnContext(ctx, "WebSocket upgrade failed", "err", err, "ip", reqctx.ClientIP(ctx))
		return
	}
	// Clients that do not negotiate a subprotocol get JSON.
	codec, err := wire.ByName(conn.Subprotocol())
	if err != nil {
		codec = wire.JSON
	}
	s := &session{
		h:     h,
		id:    ulid.Make(),
		conn:  conn,
		codec: codec,
		ip:    reqctx.ClientIP(ctx),
		who:   reqctx.Subject(ctx),
		out:   make(chan *wire.Frame, sendQueue),
		done:  make(chan struct{}),
		subs:  make(map[uint64]*docstore.Subscription),
	}
	s.run(ctx)
}

// session is one WebSocket connection.
type session struct {
	h     *WSHandler
	id    ulid.ULID
	conn  *websocket.Conn
	codec wire.Codec
	ip    string
	who   string
	out   chan *wire.Frame
	done  chan struct{}

	mu   sync.Mutex
	subs map[uint64]*docstore.Subscription
}

func (s *session) run(ctx context.Context) {
	log := slog.With("conn", s.id.String(), "ip", s.ip)
	log.InfoContext(ctx, "WebSocket connected", "codec", s.codec.Name(), "who", s.who)
	start := time.Now()

	var wg sync.WaitGroup
	wg.Go(func() { s.writeLoop(ctx) })
	err := s.readLoop(ctx)
	close(s.done)
	wg.Wait()
	_ = s.conn.Close()

	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = nil
	}
	log.InfoContext(ctx, "WebSocket disconnected", "err", err, "subscriptions", len(subs), "duration", time.Since(start).Round(time.Millisecond))
}

func (s *session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(int64(s.h.svc.Store.MaxDocumentBytes() + frameOverhead))
	deadline := 2 * s.h.ping
	_ = s.conn.SetReadDeadline(time.Now().Add(deadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(deadline))
		var f wire.Frame
		if err := s.codec.Unmarshal(data, &f); err != nil {
			slog.WarnContext(ctx, "Dropping malformed frame", "conn", s.id.String(), "err", err)
			s.send(&wire.Frame{Op: wire.OpError, ID: f.ID, Error: err.Error()})
			continue
		}
		s.handle(ctx, &f)
	}
}

func (s *session) handle(ctx context.Context, f *wire.Frame) {
	switch f.Op {
	case wire.OpSub:
		if err := s.subscribe(f.ID, f.Path); err != nil {
			s.send(&wire.Frame{Op: wire.OpError, ID: f.ID, Error: err.Error()})
		}
	case wire.OpUnsub:
		s.mu.Lock()
		sub := s.subs[f.ID]
		delete(s.subs, f.ID)
		s.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
	case wire.OpSet:
		if res := s.h.svc.Writes.Allow(s.ip); !res.Allowed {
			s.send(&wire.Frame{Op: wire.OpError, ID: f.ID, Error: fmt.Sprintf("rate limited, retry in %s", res.RetryAfter)})
			return
		}
		snap, err := s.h.svc.Store.Set(ctx, f.Path, f.Value)
		if err != nil {
			slog.WarnContext(ctx, "Rejected write", "conn", s.id.String(), "path", f.Path, "err", err)
			s.send(&wire.Frame{Op: wire.OpError, ID: f.ID, Error: err.Error()})
			return
		}
		slog.InfoContext(ctx, "Document written", "path", f.Path, "rev", snap.Rev, "by", s.who, "ip", s.ip)
		s.send(&wire.Frame{Op: wire.OpAck, ID: f.ID, Rev: snap.Rev})
	default:
		s.send(&wire.Frame{Op: wire.OpError, ID: f.ID, Error: fmt.Sprintf("unexpected op %q", f.Op)})
	}
}

func (s *session) subscribe(id uint64, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.subs[id]; dup {
		return fmt.Errorf("subscription %d already exists", id)
	}
	if len(s.subs) >= s.h.maxSubs {
		return fmt.Errorf("too many subscriptions, limit %d", s.h.maxSubs)
	}
	sub, err := s.h.svc.Store.Subscribe(path, func(snap docstore.Snapshot) {
		s.send(&wire.Frame{Op: wire.OpValue, ID: id, Path: snap.Path, Value: snap.Value, Rev: snap.Rev, At: snap.UpdatedAt})
	})
	if err != nil {
		return err
	}
	s.subs[id] = sub
	return nil
}

// send queues f for the writer. It gives up once the session ends.
func (s *session) send(f *wire.Frame) {
	select {
	case s.out <- f:
	case <-s.done:
	}
}

// writeLoop is the only writer of conn.
func (s *session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.h.ping)
	defer ticker.Stop()
	for {
		select {
		case f := <-s.out:
			data, err := s.codec.Marshal(f)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to encode frame", "conn", s.id.String(), "op", f.Op, "err", err)
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(s.codec.MessageType(), data); err != nil {
				// Unblocks readLoop.
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-ctx.Done():
			s.closeWith(websocket.CloseGoingAway, "server shutting down")
			_ = s.conn.Close()
			return
		case <-s.done:
			s.closeWith(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (s *session) closeWith(code int, reason string) {
	err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		slog.Debug("Failed to send close", "conn", s.id.String(), "err", err)
	}
}
