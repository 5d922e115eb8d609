// Package coretest holds an in-memory core.Connection for tests.
package coretest

import (
	"sync"

	"github.com/dkeye/callbridge/internal/core"
)

// Conn records everything the broker sends to it.
type Conn struct {
	id   core.ConnID
	role core.Role

	mu      sync.Mutex
	frames  []core.Frame
	texts   [][]byte
	closed  bool
	reason  core.CloseReason
	sendErr error
	textErr error
}

func NewClient(id string) *Conn { return &Conn{id: core.ConnID(id), role: core.RoleClient} }
func NewWorker(id string) *Conn { return &Conn{id: core.ConnID(id), role: core.RoleWorker} }

func (c *Conn) ID() core.ConnID { return c.id }
func (c *Conn) Role() core.Role { return c.role }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrTransportClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *Conn) TrySendText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrTransportClosed
	}
	if c.textErr != nil {
		return c.textErr
	}
	c.texts = append(c.texts, append([]byte(nil), data...))
	return nil
}

func (c *Conn) Close(r core.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.reason = r
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FailSends makes every following binary send return err.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// FailTexts makes every following text send return err.
func (c *Conn) FailTexts(err error) {
	c.mu.Lock()
	c.textErr = err
	c.mu.Unlock()
}

func (c *Conn) Frames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.frames...)
}

func (c *Conn) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.texts))
	for i, t := range c.texts {
		out[i] = string(t)
	}
	return out
}

func (c *Conn) CloseReason() (core.CloseReason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.closed
}
