package rpc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport speaks JSON-RPC over a persistent websocket per endpoint.
// Older nodes expose ws:// and wss:// RPC alongside HTTPS POST; reusing
// one connection avoids a dial per call.
type WSTransport struct {
	mu    sync.Mutex
	conns map[string]*wsConn

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// NewWSTransport builds an empty connection cache.
func NewWSTransport() *WSTransport {
	return &WSTransport{
		conns:       make(map[string]*wsConn),
		DialTimeout: 10 * time.Second,
	}
}

type wsConn struct {
	conn     *websocket.Conn
	endpoint string

	mu      sync.Mutex
	writeMu sync.Mutex
	pending map[uint64]chan *Response
	closed  bool
}

func (t *WSTransport) getOrDial(ctx context.Context, endpoint string) (*wsConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if wc := t.conns[endpoint]; wc != nil && !wc.isClosed() {
		return wc, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	wc := &wsConn{
		conn:     conn,
		endpoint: endpoint,
		pending:  make(map[uint64]chan *Response),
	}
	t.conns[endpoint] = wc
	go wc.readLoop()
	return wc, nil
}

func (t *WSTransport) RoundTrip(ctx context.Context, endpoint string, req *Request) (*Response, error) {
	wc, err := t.getOrDial(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	ch := make(chan *Response, 1)
	wc.mu.Lock()
	if wc.closed {
		wc.mu.Unlock()
		return nil, errors.New("connection closed")
	}
	wc.pending[req.ID] = ch
	wc.mu.Unlock()

	defer func() {
		wc.mu.Lock()
		delete(wc.pending, req.ID)
		wc.mu.Unlock()
	}()

	wc.writeMu.Lock()
	deadline, ok := ctx.Deadline()
	if ok {
		wc.conn.SetWriteDeadline(deadline)
	}
	err = wc.conn.WriteJSON(req)
	wc.writeMu.Unlock()
	if err != nil {
		wc.markClosed()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, errors.New("connection closed mid-call")
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears down every cached connection.
func (t *WSTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for endpoint, wc := range t.conns {
		wc.markClosed()
		delete(t.conns, endpoint)
	}
}

func (wc *wsConn) isClosed() bool {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.closed
}

// readLoop routes incoming replies to the pending call that issued them.
func (wc *wsConn) readLoop() {
	defer wc.markClosed()

	for {
		var resp Response
		if err := wc.conn.ReadJSON(&resp); err != nil {
			wc.mu.Lock()
			closed := wc.closed
			wc.mu.Unlock()
			if !closed {
				slog.Debug("rpc: websocket read error", "endpoint", wc.endpoint, "error", err)
			}
			return
		}

		wc.mu.Lock()
		ch := wc.pending[resp.ID]
		wc.mu.Unlock()

		if ch != nil {
			select {
			case ch <- &resp:
			default:
			}
		}
	}
}

func (wc *wsConn) markClosed() {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.closed {
		return
	}
	wc.closed = true
	wc.conn.Close()
	for id, ch := range wc.pending {
		close(ch)
		delete(wc.pending, id)
	}
}
