// Package ws carries broker connections over gorilla/websocket.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	WriteControl(mt int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	WriteTimeout time.Duration
	SendBuffer   int

	// AllowedOrigins extends the same-host check for browser clients.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

// pongWait leaves the peer a little more than one ping period to answer.
func (o Options) pongWait() time.Duration { return o.PingPeriod * 10 / 9 }

// Handler receives what a connection reads.
type Handler interface {
	OnFrame(ctx context.Context, conn core.Connection, frame core.Frame)
	OnText(ctx context.Context, conn core.Connection, data []byte)
	OnDisconnect(ctx context.Context, conn core.Connection)
}

type outbound struct {
	mt   int
	data []byte
}

// Conn is a WebSocket transport endpoint. It implements core.Connection.
// All writes go through one pump goroutine.
type Conn struct {
	id   core.ConnID
	role core.Role
	ws   WSConn
	opts Options

	mu     sync.RWMutex
	send   chan outbound
	closed bool
	reason core.CloseReason
}

func NewConn(role core.Role, ws WSConn, opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		id:   core.ConnID(uuid.NewString()),
		role: role,
		ws:   ws,
		opts: opts,
		send: make(chan outbound, opts.SendBuffer),
	}
}

func (c *Conn) ID() core.ConnID { return c.id }
func (c *Conn) Role() core.Role { return c.role }

func (c *Conn) TrySend(f core.Frame) error {
	return c.enqueue(outbound{mt: websocket.BinaryMessage, data: f})
}

func (c *Conn) TrySendText(data []byte) error {
	return c.enqueue(outbound{mt: websocket.TextMessage, data: data})
}

func (c *Conn) enqueue(m outbound) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrTransportClosed
	}
	select {
	case c.send <- m:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Close stops accepting frames. The write pump flushes what is queued,
// sends a close frame with reason and closes the socket.
func (c *Conn) Close(reason core.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
	close(c.send)
}

func (c *Conn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Conn) closeReason() core.CloseReason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reason
}

// Run pumps both directions until the socket dies and then reports the
// disconnect to h exactly once.
func (c *Conn) Run(ctx context.Context, h Handler) {
	var wg conc.WaitGroup
	wg.Go(c.writePump)
	wg.Go(func() {
		c.readPump(ctx, h)
	})
	wg.Wait()
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()
	defer func() { _ = c.ws.Close() }()

	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				r := c.closeReason()
				deadline := time.Now().Add(c.opts.WriteTimeout)
				_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(r.Code, r.Text), deadline)
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.abort(err)
				return
			}
			if err := c.ws.WriteMessage(m.mt, m.data); err != nil {
				c.abort(err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.abort(err)
				return
			}
		}
	}
}

// abort marks the connection dead after a failed write.
func (c *Conn) abort(err error) {
	log.Debug().Err(err).Str("module", "ws").Str("conn_id", string(c.id)).Msg("write failed")
	c.Close(core.CloseUnavailable)
}

func (c *Conn) readPump(ctx context.Context, h Handler) {
	defer func() {
		h.OnDisconnect(ctx, c)
		c.Close(core.CloseNormal)
	}()

	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("module", "ws").Str("conn_id", string(c.id)).Msg("read ended")
			}
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			h.OnFrame(ctx, c, core.Frame(data))
		case websocket.TextMessage:
			h.OnText(ctx, c, data)
		}
	}
}
