package app

import (
	"sync"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type pairing struct {
	callID domain.CallID
	client core.Connection
	worker core.Connection
}

func (p *pairing) peerOf(id core.ConnID) core.Connection {
	if p.client.ID() == id {
		return p.worker
	}
	return p.client
}

// Registry is the single source of truth for who talks to whom.
// Both connection ids of a pairing point at the same entry, so a connection
// can never sit in two pairings at once.
type Registry struct {
	mu       sync.RWMutex
	bindings map[core.ConnID]domain.CallID
	pairs    map[core.ConnID]*pairing
	byCall   map[domain.CallID]*pairing
}

func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[core.ConnID]domain.CallID),
		pairs:    make(map[core.ConnID]*pairing),
		byCall:   make(map[domain.CallID]*pairing),
	}
}

// Bind registers the call id a client connection was opened for.
func (r *Registry) Bind(id core.ConnID, callID domain.CallID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[id]; ok {
		return core.ErrDuplicateBinding
	}
	r.bindings[id] = callID
	log.Debug().Str("module", "app.registry").Str("conn_id", string(id)).Stringer("call_id", callID).Msg("bound connection")
	return nil
}

func (r *Registry) Unbind(id core.ConnID) (domain.CallID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	callID, ok := r.bindings[id]
	delete(r.bindings, id)
	return callID, ok
}

// CallOf resolves the call of a bound client or of any paired connection.
func (r *Registry) CallOf(id core.ConnID) (domain.CallID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.pairs[id]; ok {
		return p.callID, true
	}
	callID, ok := r.bindings[id]
	return callID, ok
}

func (r *Registry) Pair(client, worker core.Connection, callID domain.CallID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pairs[client.ID()]; ok {
		return core.ErrAlreadyPaired
	}
	if _, ok := r.pairs[worker.ID()]; ok {
		return core.ErrAlreadyPaired
	}
	if _, ok := r.byCall[callID]; ok {
		return core.ErrAlreadyPaired
	}
	p := &pairing{callID: callID, client: client, worker: worker}
	r.pairs[client.ID()] = p
	r.pairs[worker.ID()] = p
	r.byCall[callID] = p
	log.Info().Str("module", "app.registry").Stringer("call_id", callID).
		Str("client", string(client.ID())).Str("worker", string(worker.ID())).Msg("paired")
	return nil
}

// Unpair drops the pairing that contains id and returns the other side.
// A second call returns ErrNotPaired.
func (r *Registry) Unpair(id core.ConnID) (core.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pairs[id]
	if !ok {
		return nil, core.ErrNotPaired
	}
	delete(r.pairs, p.client.ID())
	delete(r.pairs, p.worker.ID())
	delete(r.byCall, p.callID)
	log.Info().Str("module", "app.registry").Stringer("call_id", p.callID).Str("conn_id", string(id)).Msg("unpaired")
	return p.peerOf(id), nil
}

func (r *Registry) PeerOf(id core.ConnID) (core.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pairs[id]
	if !ok {
		return nil, false
	}
	return p.peerOf(id), true
}

func (r *Registry) ActivePairs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCall)
}
