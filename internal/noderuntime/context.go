// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package noderuntime defines the contract every node implements and the
// mailbox (Context) the engine hands it at spawn time (spec §4.2).
package noderuntime

import (
	"context"
	"sync"

	"github.com/streamkit-io/streamkit/internal/nodestats"
	"github.com/streamkit-io/streamkit/internal/pin"
	"github.com/streamkit-io/streamkit/internal/telemetry"
)

// State is the node's client-visible lifecycle (spec §3).
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateRunning      State = "running"
	StateStopped      State = "stopped"
	StateFailed       State = "failed"
)

// StateEvent is published on the engine's state bus.
type StateEvent struct {
	NodeID string
	State  State
	Reason string // populated for Failed; Stopped events carry no reason
	At     int64  // unix nanos; stamped by the emitter, not this package
}

// ControlKind tags which control message a node received.
type ControlKind int

const (
	ControlUpdateParams ControlKind = iota
	ControlStart
	ControlShutdown
)

// ControlMessage is sent on a node's control channel (spec §4.2).
type ControlMessage struct {
	Kind   ControlKind
	Params []byte // raw JSON, only meaningful for ControlUpdateParams
}

// PinUpdate lets a node's Initialize replace its declared pin set once it has
// discovered its real shape (e.g. from params or an external resource). A nil
// PinUpdate means NoChange.
type PinUpdate struct {
	Inputs  []pin.Input
	Outputs []pin.Output
}

// InputSet is the node's mapping from input-pin name to bounded receive
// channel. It is safe for concurrent use: the engine may add a channel for a
// newly materialized Dynamic-cardinality pin while the node's run loop reads
// or ranges over the set (spec §4.4, "install receiver side into destination
// node's input map ... via pin-management if the input is dynamic").
type InputSet struct {
	mu    sync.RWMutex
	chans map[string]chan any
}

// NewInputSet wraps an initial map of static input channels.
func NewInputSet(initial map[string]chan any) *InputSet {
	if initial == nil {
		initial = make(map[string]chan any)
	}
	return &InputSet{chans: initial}
}

// Get returns the receive channel for name, if present.
func (s *InputSet) Get(name string) (<-chan any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chans[name]
	return ch, ok
}

// Names returns a snapshot of currently known input-pin names.
func (s *InputSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.chans))
	for name := range s.chans {
		out = append(out, name)
	}
	return out
}

// Chan returns the underlying bidirectional channel for name. It exists for
// the engine's wiring code (the distributor needs a sendable channel); node
// implementations should use Get instead.
func (s *InputSet) Chan(name string) (chan any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chans[name]
	return ch, ok
}

// Add registers a channel for name, e.g. once a Dynamic pin's family gains a
// member. Engine-only; nodes observe the addition via PinManagementRx.
func (s *InputSet) Add(name string, ch chan any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chans[name] = ch
}

// Remove deletes name from the set.
func (s *InputSet) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chans, name)
}

// OutputSender is the thin producer-side handle passed to a node (spec §4.5).
// Send returns distributor.ErrClosed when the named pin has no distributor (no
// connection was ever made from it) or the distributor backing it has exited —
// the node's signal to shut down. A pin whose edges have all been removed still
// accepts packets, which its distributor counts as discarded.
type OutputSender interface {
	Send(ctx context.Context, pinName string, p any) error
}

// PinEvent is delivered on a node's pin-management channel when the engine
// applies a dynamic pin addition or removal (spec §4.3/§4.4).
type PinEvent struct {
	Added   *pin.Input // for Dynamic input families created on demand
	Removed string     // pin name removed, if non-empty
}

// Context is everything a node's run loop needs (spec §4.2).
type Context struct {
	NodeID string

	// Inputs maps input-pin name to a bounded receive channel of packets.
	Inputs *InputSet

	ControlRx        <-chan ControlMessage
	PinManagementRx  <-chan PinEvent
	Output           OutputSender
	StateTx          chan<- StateEvent
	StatsTx          *nodestats.Tracker
	Telemetry        *telemetry.Bus
	CancellationCtx  context.Context
	BatchSize        int
}

// Node is the heterogeneous interface every kind in the registry implements
// (spec §4.2, "Node polymorphism via trait objects" in the design notes).
type Node interface {
	// Initialize performs any async setup and returns a PinUpdate if the node's
	// real pin set differs from its registry defaults, or nil for NoChange.
	Initialize(ctx context.Context) (*PinUpdate, error)

	// Run executes the node's main loop until Shutdown, cancellation, or all
	// inputs close. The engine publishes Stopped (nil error) or Failed (error
	// or panic) once Run returns; the node does not emit them itself.
	Run(ctx context.Context, nc *Context) error

	// InputPins and OutputPins report the node's registry-default pin set,
	// used for validation and discovery before Initialize runs.
	InputPins() []pin.Input
	OutputPins() []pin.Output
}
