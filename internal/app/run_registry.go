package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/conveyor/internal/core/workflow"
)

// runRegistry serializes mutating operations per ticket. Each in-flight
// operation holds the ticket's slot and carries the cancellation handle used
// for cooperative cancellation; a second mutating call for the same ticket
// fails fast instead of queueing. Different tickets run independently.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*runHandle
}

// runHandle represents one in-flight mutating operation for a ticket.
type runHandle struct {
	registry *runRegistry
	ticketID string
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*runHandle)}
}

// begin claims the ticket's run slot and returns the run's context, derived
// from ctx and cancelled by interrupt. Fails with ErrWorkflowBusy when
// another operation is already in flight for the ticket.
func (r *runRegistry) begin(ctx context.Context, ticketID string) (*runHandle, context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[ticketID]; ok {
		return nil, nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowBusy, ticketID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := &runHandle{
		registry: r,
		ticketID: ticketID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	r.runs[ticketID] = handle
	return handle, runCtx, nil
}

// end releases the slot. Idempotent; must run on every exit path of the
// operation that called begin.
func (h *runHandle) end() {
	h.once.Do(func() {
		h.registry.mu.Lock()
		delete(h.registry.runs, h.ticketID)
		h.registry.mu.Unlock()
		h.cancel()
		close(h.done)
	})
}

// interrupt cancels the in-flight run for a ticket, if any, and returns a
// channel that closes once that run has fully exited. The channel is already
// closed when nothing is in flight.
func (r *runRegistry) interrupt(ticketID string) <-chan struct{} {
	r.mu.Lock()
	handle, ok := r.runs[ticketID]
	r.mu.Unlock()

	if !ok {
		done := make(chan struct{})
		close(done)
		return done
	}
	handle.cancel()
	return handle.done
}
