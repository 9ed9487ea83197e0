// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package distributor implements the per-output-pin fan-out actor (spec §4.3):
// one goroutine per active output pin, cloning each inbound packet across its
// outgoing edges according to each edge's delivery mode.
package distributor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamkit-io/streamkit/internal/log"
)

// Mode selects an edge's delivery policy.
type Mode int

const (
	// Reliable blocks the distributor until the edge accepts the packet,
	// propagating backpressure to the producer via its bounded inbound queue.
	Reliable Mode = iota
	// BestEffort attempts a non-blocking enqueue and drops on full.
	BestEffort
)

// ErrClosed is returned by the engine's output sender when the named pin has
// no distributor (no connection was ever made from it) or its distributor has
// exited; nodes treat it as a signal to stop. A distributor whose edges have
// all been removed keeps accepting packets and counts them as discarded, so
// that case does not produce ErrClosed.
var ErrClosed = errors.New("distributor: closed")

// ConnectionID is the primary key of one edge (spec §3).
type ConnectionID struct {
	FromNode string
	FromPin  string
	ToNode   string
	ToPin    string
}

// String renders the connection as "from.pin->to.pin", used as the conn_id
// log field so an edge is identifiable without logging all four parts.
func (id ConnectionID) String() string {
	return id.FromNode + "." + id.FromPin + "->" + id.ToNode + "." + id.ToPin
}

// edgeSender is the destination-side handle a distributor enqueues into.
// It is the receiving node's bounded input channel for ToPin, wrapped so the
// distributor can push without knowing the node's internal representation.
type edgeSender interface {
	// Enqueue delivers p. block selects Reliable (await) vs BestEffort
	// (non-blocking) semantics; Enqueue returns false if the edge is gone.
	Enqueue(ctx context.Context, p any, block bool) (delivered bool, alive bool)
}

// ChannelEdge adapts a node's bounded input channel into an edgeSender. The
// engine constructs one per connection when wiring Connect (spec §4.4).
// Close marks it dead and unblocks any Enqueue currently parked waiting for
// room on a Reliable edge, independent of the distributor's own goroutine:
// a targeted RemoveNode/Disconnect calls Close directly rather than routing
// through the distributor's config channel, which may itself be stuck behind
// the very fan-out call Close needs to abort.
type ChannelEdge struct {
	ch chan any

	mu     sync.Mutex
	closed bool
	doneCh chan struct{}
}

// NewChannelEdge wraps ch, the destination node's bounded input channel.
func NewChannelEdge(ch chan any) *ChannelEdge {
	return &ChannelEdge{ch: ch, doneCh: make(chan struct{})}
}

// Close marks the edge dead; subsequent Enqueue calls report alive=false and
// any Enqueue already blocked on this edge returns immediately. Safe to call
// more than once.
func (c *ChannelEdge) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.doneCh)
}

// Enqueue implements edgeSender.
func (c *ChannelEdge) Enqueue(ctx context.Context, p any, block bool) (delivered bool, alive bool) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false, false
	}

	if block {
		select {
		case c.ch <- p:
			return true, true
		case <-ctx.Done():
			return false, true
		case <-c.doneCh:
			return false, false
		}
	}

	select {
	case c.ch <- p:
		return true, true
	case <-c.doneCh:
		return false, false
	default:
		return false, true
	}
}

// AddConnection registers a new outgoing edge.
type AddConnection struct {
	ID     ConnectionID
	Sender edgeSender
	Mode   Mode
}

// RemoveConnection tears down one outgoing edge.
type RemoveConnection struct {
	ID ConnectionID
}

// Shutdown requests the distributor drain its config queue and exit.
type Shutdown struct{}

// configMsg is the union accepted on the config channel.
type configMsg any

type edge struct {
	sender edgeSender
	mode   Mode
}

// Distributor is one output pin's fan-out actor (spec §4.3, invariant 5: one
// distributor per output pin with ≥1 edge).
type Distributor struct {
	nodeID string
	pin    string

	inbound chan any
	config  chan configMsg

	log zerolog.Logger

	mu          sync.Mutex
	edges       map[ConnectionID]edge
	dropCounts  map[ConnectionID]uint64
	discarded   uint64
	doneCh      chan struct{}

	onDrop func(ConnectionID)
}

// Option customizes a Distributor at construction.
type Option func(*Distributor)

// WithDropHook registers fn to be called, outside the distributor's own
// lock, every time a BestEffort edge drops a packet. The engine uses this to
// feed streamkit_distributor_drops_total without distributor depending on
// the metrics package directly.
func WithDropHook(fn func(ConnectionID)) Option {
	return func(d *Distributor) { d.onDrop = fn }
}

// New creates a Distributor for (nodeID, pinName) with the given inbound and
// config channel capacities.
func New(nodeID, pinName string, inboundCapacity, configCapacity int, opts ...Option) *Distributor {
	d := &Distributor{
		nodeID:  nodeID,
		pin:     pinName,
		inbound: make(chan any, inboundCapacity),
		config:  make(chan configMsg, configCapacity),
		log: log.WithComponent("distributor").With().
			Str(log.FieldNodeID, nodeID).Str(log.FieldPin, pinName).Str(log.FieldDistributorID, uuid.NewString()).Logger(),
		edges:      make(map[ConnectionID]edge),
		dropCounts: make(map[ConnectionID]uint64),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Inbound is the channel the producing node's output sender pushes into.
func (d *Distributor) Inbound() chan<- any { return d.inbound }

// Config is the channel the engine uses to reconfigure edges.
func (d *Distributor) Config() chan<- configMsg { return d.config }

// Done closes once Run has returned.
func (d *Distributor) Done() <-chan struct{} { return d.doneCh }

// EdgeCount reports the current number of live outgoing edges.
func (d *Distributor) EdgeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.edges)
}

// DroppedFor returns the BestEffort drop counter for one edge.
func (d *Distributor) DroppedFor(id ConnectionID) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropCounts[id]
}

// Discarded returns the count of packets dropped because the distributor had
// no edges at all when they arrived.
func (d *Distributor) Discarded() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discarded
}

// Run is the distributor's goroutine body; the engine spawns one per active
// output pin and stops it via a Shutdown config message or by closing inbound.
func (d *Distributor) Run(ctx context.Context) {
	defer close(d.doneCh)

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-d.config:
			if !ok {
				return
			}
			if d.applyConfig(msg) {
				return
			}

		case p, ok := <-d.inbound:
			if !ok {
				return
			}
			d.fanOut(ctx, p)
		}
	}
}

// applyConfig mutates the edge set; it returns true if the distributor must exit.
func (d *Distributor) applyConfig(msg configMsg) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch m := msg.(type) {
	case AddConnection:
		d.edges[m.ID] = edge{sender: m.Sender, mode: m.Mode}
	case RemoveConnection:
		delete(d.edges, m.ID)
		delete(d.dropCounts, m.ID)
	case Shutdown:
		return true
	}
	return false
}

// fanOut clones p once per outgoing edge and delivers it per mode (spec §4.3).
func (d *Distributor) fanOut(ctx context.Context, p any) {
	d.mu.Lock()
	if len(d.edges) == 0 {
		d.discarded++
		d.mu.Unlock()
		return
	}
	edges := make(map[ConnectionID]edge, len(d.edges))
	for id, e := range d.edges {
		edges[id] = e
	}
	d.mu.Unlock()

	var dead []ConnectionID
	for id, e := range edges {
		block := e.mode == Reliable
		delivered, alive := e.sender.Enqueue(ctx, p, block)
		if !alive {
			dead = append(dead, id)
			continue
		}
		if !delivered {
			d.mu.Lock()
			d.dropCounts[id]++
			d.mu.Unlock()
			d.log.Debug().Str(log.FieldConnID, id.String()).Msg("best-effort edge full, packet dropped")
			if d.onDrop != nil {
				d.onDrop(id)
			}
		}
	}

	if len(dead) > 0 {
		d.mu.Lock()
		for _, id := range dead {
			delete(d.edges, id)
			delete(d.dropCounts, id)
		}
		d.mu.Unlock()
	}
}
