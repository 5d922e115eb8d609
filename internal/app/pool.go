package app

import (
	"sync"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// PendingClient is a client waiting for a worker.
type PendingClient struct {
	CallID domain.CallID
	Conn   core.Connection
}

// WorkerPool matches idle workers with waiting clients, oldest first on
// both sides. Each Offer* checks the opposite queue and mutates it in one
// critical section.
type WorkerPool struct {
	mu      sync.Mutex
	idle    []core.Connection
	pending []PendingClient
}

func NewWorkerPool() *WorkerPool {
	return &WorkerPool{}
}

// OfferWorker hands the oldest pending client to w, or parks w as idle.
func (p *WorkerPool) OfferWorker(w core.Connection) (PendingClient, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) > 0 {
		pc := p.pending[0]
		p.pending[0] = PendingClient{}
		p.pending = p.pending[1:]
		return pc, true
	}
	for _, idle := range p.idle {
		if idle.ID() == w.ID() {
			return PendingClient{}, false
		}
	}
	p.idle = append(p.idle, w)
	log.Debug().Str("module", "app.pool").Str("worker", string(w.ID())).Int("idle", len(p.idle)).Msg("worker parked")
	return PendingClient{}, false
}

// OfferClient hands the oldest idle worker to pc, or queues pc.
func (p *WorkerPool) OfferClient(pc PendingClient) (core.Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle) > 0 {
		w := p.idle[0]
		p.idle[0] = nil
		p.idle = p.idle[1:]
		return w, true
	}
	for _, q := range p.pending {
		if q.CallID == pc.CallID {
			return nil, false
		}
	}
	p.pending = append(p.pending, pc)
	log.Debug().Str("module", "app.pool").Stringer("call_id", pc.CallID).Int("pending", len(p.pending)).Msg("client queued")
	return nil, false
}

// RequeueClient puts a client back at the head of the queue after a match
// fell through on the worker side.
func (p *WorkerPool) RequeueClient(pc PendingClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append([]PendingClient{pc}, p.pending...)
}

func (p *WorkerPool) RemoveIdleWorker(w core.Connection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, idle := range p.idle {
		if idle.ID() == w.ID() {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			return true
		}
	}
	return false
}

func (p *WorkerPool) RemovePendingClient(callID domain.CallID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pc := range p.pending {
		if pc.CallID == callID {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (p *WorkerPool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

func (p *WorkerPool) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *WorkerPool) IsIdle(id core.ConnID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, idle := range p.idle {
		if idle.ID() == id {
			return true
		}
	}
	return false
}

func (p *WorkerPool) IsPending(callID domain.CallID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pc := range p.pending {
		if pc.CallID == callID {
			return true
		}
	}
	return false
}

// PendingCalls lists waiting call ids in queue order.
func (p *WorkerPool) PendingCalls() []domain.CallID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.CallID, 0, len(p.pending))
	for _, pc := range p.pending {
		out = append(out, pc.CallID)
	}
	return out
}
