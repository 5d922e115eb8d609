// Package broker pairs client connections with worker connections and
// relays their traffic for the lifetime of a call.
package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type call struct {
	id             domain.CallID
	state          domain.CallState
	client         core.Connection
	worker         core.Connection
	userID         domain.UserID
	voiceProfileID domain.VoiceProfileID
}

// Broker owns the registry and the pool. mu serializes every compound
// transition (bind+offer, offer+pair, unpair+release); the registry and
// pool locks only guard their own maps.
type Broker struct {
	Registry *app.Registry
	Pool     *app.WorkerPool
	Sessions core.SessionStore
	Notifier core.Notifier
	Policy   app.Policy

	mu      sync.Mutex
	members map[core.ConnID]core.Connection
	calls   map[domain.CallID]*call
	// ended holds every call this broker has ended, so a late or racing
	// client cannot revive it. The value records whether the store has
	// the end time.
	ended   map[domain.CallID]bool
	closing bool
}

func New(sessions core.SessionStore, notifier core.Notifier) *Broker {
	if notifier == nil {
		notifier = core.NopNotifier{}
	}
	return &Broker{
		Registry: app.NewRegistry(),
		Pool:     app.NewWorkerPool(),
		Sessions: sessions,
		Notifier: notifier,
		Policy:   app.SimplePolicy{},
		members:  make(map[core.ConnID]core.Connection),
		calls:    make(map[domain.CallID]*call),
		ended:    make(map[domain.CallID]bool),
	}
}

// State reports where a call is. Calls the broker no longer tracks are ENDED.
func (b *Broker) State(callID domain.CallID) domain.CallState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.calls[callID]; ok {
		return c.state
	}
	return domain.CallEnded
}

func (b *Broker) Stats() core.BrokerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return core.BrokerStats{
		IdleWorkers:    b.Pool.IdleCount(),
		PendingClients: b.Pool.PendingCount(),
		ActiveCalls:    b.Registry.ActivePairs(),
	}
}

// Shutdown refuses further registrations and closes every live connection
// with going-away. The read pumps then run the regular disconnect path.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	b.closing = true
	conns := make([]core.Connection, 0, len(b.members))
	for _, c := range b.members {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	log.Info().Str("module", "broker").Int("connections", len(conns)).Msg("shutting down")
	for _, c := range conns {
		c.Close(core.CloseGoingAway)
	}
}

type closeOp struct {
	conn   core.Connection
	reason core.CloseReason
}

type endedCall struct {
	id     domain.CallID
	reason string
}

// effects collects the work a transition produces so it can run after mu
// is released.
type effects struct {
	closes []closeOp
	dead   []core.Connection
	ended  []endedCall
}

// markEndedLocked tombstones id. A tombstone is never cleared.
func (b *Broker) markEndedLocked(id domain.CallID) {
	if _, ok := b.ended[id]; !ok {
		b.ended[id] = false
	}
}

func (b *Broker) markPersisted(id domain.CallID) {
	b.mu.Lock()
	b.ended[id] = true
	b.mu.Unlock()
}

// apply runs the deferred effects. It returns the store errors so a caller
// that owns the end of a call can report them.
func (b *Broker) apply(ctx context.Context, fx *effects) error {
	var errs []error
	for _, op := range fx.closes {
		op.conn.Close(op.reason)
	}
	for _, w := range fx.dead {
		log.Warn().Str("module", "broker").Str("conn_id", string(w.ID())).Msg("dropping unreachable worker")
		w.Close(core.CloseUnavailable)
		b.OnDisconnect(ctx, w)
	}
	for _, e := range fx.ended {
		if err := b.Sessions.CloseSession(ctx, e.id); err != nil {
			log.Error().Err(err).Str("module", "broker").Stringer("call_id", e.id).Msg("close session failed")
			errs = append(errs, err)
		} else {
			b.markPersisted(e.id)
		}
		b.Notifier.NotifyCallEnded(ctx, e.id, e.reason)
		log.Info().Str("module", "broker").Stringer("call_id", e.id).Str("reason", e.reason).Msg("call ended")
	}
	return errors.Join(errs...)
}
