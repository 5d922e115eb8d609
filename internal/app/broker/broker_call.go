package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	reasonClientGone = "client disconnected"
	reasonWorkerGone = "worker disconnected"
	reasonHangup     = "call ended by API"
)

// RegisterClient binds conn to callID and either pairs it with the oldest
// idle worker or queues it. Call metadata is read from the store first, so
// unknown and ended calls never reach the pool.
func (b *Broker) RegisterClient(ctx context.Context, callID domain.CallID, conn core.Connection) error {
	vpID, err := b.Sessions.GetVoiceProfileID(ctx, callID)
	if err != nil {
		return fmt.Errorf("voice profile of call %s: %w", callID, err)
	}
	userID, err := b.Sessions.GetUserID(ctx, callID)
	if err != nil {
		return fmt.Errorf("user of call %s: %w", callID, err)
	}

	var fx effects
	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return core.ErrShuttingDown
	}
	if _, ok := b.ended[callID]; ok {
		b.mu.Unlock()
		return fmt.Errorf("call %s: %w", callID, domain.ErrCallEnded)
	}
	if _, ok := b.calls[callID]; ok {
		b.mu.Unlock()
		return core.ErrDuplicateBinding
	}
	if _, ok := b.members[conn.ID()]; ok {
		b.mu.Unlock()
		return core.ErrDuplicateBinding
	}
	if err := b.Registry.Bind(conn.ID(), callID); err != nil {
		b.mu.Unlock()
		return err
	}
	c := &call{
		id:             callID,
		state:          domain.CallPending,
		client:         conn,
		userID:         userID,
		voiceProfileID: vpID,
	}
	b.members[conn.ID()] = conn
	b.calls[callID] = c
	b.matchClientLocked(c, &fx)
	b.mu.Unlock()

	b.apply(ctx, &fx)
	return nil
}

// RegisterWorker makes conn available: it takes the oldest pending client
// or joins the idle pool.
func (b *Broker) RegisterWorker(ctx context.Context, conn core.Connection) error {
	var fx effects
	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return core.ErrShuttingDown
	}
	if _, ok := b.members[conn.ID()]; ok {
		b.mu.Unlock()
		return core.ErrDuplicateBinding
	}
	b.members[conn.ID()] = conn
	b.matchWorkerLocked(conn, &fx)
	b.mu.Unlock()

	b.apply(ctx, &fx)
	return nil
}

// ForceEnd ends a call from outside the socket layer and records its end
// time. A call without a client socket is closed in the store directly.
// Unknown calls are ignored, and ending an ended call is a no-op once the
// store has the end time. Only store failures are returned.
func (b *Broker) ForceEnd(ctx context.Context, callID domain.CallID) error {
	var fx effects
	b.mu.Lock()
	c, ok := b.calls[callID]
	if !ok {
		persisted := b.ended[callID]
		b.markEndedLocked(callID)
		b.mu.Unlock()
		if persisted {
			return nil
		}
		log.Debug().Str("module", "broker").Stringer("call_id", callID).Msg("hangup for untracked call")
		err := b.Sessions.CloseSession(ctx, callID)
		if errors.Is(err, domain.ErrUnknownCall) {
			return nil
		}
		if err != nil {
			return err
		}
		b.markPersisted(callID)
		return nil
	}
	delete(b.members, c.client.ID())
	b.Registry.Unbind(c.client.ID())
	b.endLocked(c, reasonHangup, &fx)
	fx.closes = append(fx.closes, closeOp{conn: c.client, reason: core.CloseHangup})
	b.mu.Unlock()

	return b.apply(ctx, &fx)
}

// OnDisconnect tears down whatever conn took part in. Only the first call
// for a connection has any effect.
func (b *Broker) OnDisconnect(ctx context.Context, conn core.Connection) {
	var fx effects
	b.mu.Lock()
	if _, ok := b.members[conn.ID()]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.members, conn.ID())
	switch conn.Role() {
	case core.RoleClient:
		b.clientGoneLocked(conn, &fx)
	case core.RoleWorker:
		b.workerGoneLocked(conn, &fx)
	}
	b.mu.Unlock()

	log.Info().Str("module", "broker").Str("conn_id", string(conn.ID())).Stringer("role", conn.Role()).Msg("disconnected")
	b.apply(ctx, &fx)
}

func (b *Broker) clientGoneLocked(conn core.Connection, fx *effects) {
	callID, ok := b.Registry.Unbind(conn.ID())
	if !ok {
		return
	}
	c, ok := b.calls[callID]
	if !ok || c.client.ID() != conn.ID() {
		return
	}
	b.endLocked(c, reasonClientGone, fx)
}

func (b *Broker) workerGoneLocked(conn core.Connection, fx *effects) {
	if b.Pool.RemoveIdleWorker(conn) {
		log.Info().Str("module", "broker").Str("conn_id", string(conn.ID())).Msg("idle worker left")
		return
	}
	client, err := b.Registry.Unpair(conn.ID())
	if err != nil {
		return
	}
	callID, _ := b.Registry.Unbind(client.ID())
	delete(b.members, client.ID())
	if c, ok := b.calls[callID]; ok {
		c.state = domain.CallEnded
		c.worker = nil
		delete(b.calls, callID)
	}
	b.markEndedLocked(callID)
	fx.closes = append(fx.closes, closeOp{conn: client, reason: core.CloseWorkerLost})
	fx.ended = append(fx.ended, endedCall{id: callID, reason: reasonWorkerGone})
}

// endLocked moves c to ENDED from either live state and hands a paired
// worker back to the pool.
func (b *Broker) endLocked(c *call, reason string, fx *effects) {
	switch c.state {
	case domain.CallPending:
		b.Pool.RemovePendingClient(c.id)
	case domain.CallActive:
		if w, err := b.Registry.Unpair(c.client.ID()); err == nil {
			b.releaseWorkerLocked(w, c.id, reason, fx)
		}
	}
	c.state = domain.CallEnded
	c.worker = nil
	delete(b.calls, c.id)
	b.markEndedLocked(c.id)
	fx.ended = append(fx.ended, endedCall{id: c.id, reason: reason})
}

// releaseWorkerLocked tells the worker its call is over and offers it to
// the pool again. A worker whose transport is gone is left to its own
// disconnect path.
func (b *Broker) releaseWorkerLocked(w core.Connection, callID domain.CallID, reason string, fx *effects) {
	if w.Closed() {
		return
	}
	if _, ok := b.members[w.ID()]; !ok {
		return
	}
	msg, err := core.EncodeEnd(callID, reason)
	if err == nil {
		err = w.TrySendText(msg)
	}
	if err != nil {
		fx.dead = append(fx.dead, w)
		return
	}
	b.matchWorkerLocked(w, fx)
}

func (b *Broker) matchClientLocked(c *call, fx *effects) {
	for {
		w, ok := b.Pool.OfferClient(app.PendingClient{CallID: c.id, Conn: c.client})
		if !ok {
			log.Info().Str("module", "broker").Stringer("call_id", c.id).Msg("waiting for worker")
			return
		}
		if err := b.startLocked(c, w); err != nil {
			log.Warn().Err(err).Str("module", "broker").Stringer("call_id", c.id).Str("worker", string(w.ID())).Msg("start failed")
			fx.dead = append(fx.dead, w)
			continue
		}
		return
	}
}

func (b *Broker) matchWorkerLocked(w core.Connection, fx *effects) {
	for {
		pc, ok := b.Pool.OfferWorker(w)
		if !ok {
			return
		}
		c, ok := b.calls[pc.CallID]
		if !ok || c.state != domain.CallPending {
			continue
		}
		if err := b.startLocked(c, w); err != nil {
			log.Warn().Err(err).Str("module", "broker").Stringer("call_id", c.id).Str("worker", string(w.ID())).Msg("start failed")
			b.Pool.RequeueClient(pc)
			fx.dead = append(fx.dead, w)
		}
		return
	}
}

// startLocked sends the start message and records the pairing. The start
// message is queued before the pairing exists, so it precedes any audio.
func (b *Broker) startLocked(c *call, w core.Connection) error {
	msg, err := core.EncodeStart(c.id, c.voiceProfileID, c.userID)
	if err != nil {
		return err
	}
	if err := w.TrySendText(msg); err != nil {
		return err
	}
	if err := b.Registry.Pair(c.client, w, c.id); err != nil {
		return err
	}
	c.state = domain.CallActive
	c.worker = w
	log.Info().Str("module", "broker").Stringer("call_id", c.id).Str("worker", string(w.ID())).Msg("call active")
	return nil
}
