// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sync"
	"time"

	"github.com/streamkit-io/streamkit/internal/distributor"
	"github.com/streamkit-io/streamkit/internal/engineerr"
	"github.com/streamkit-io/streamkit/internal/nodestats"
	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/telemetry"
)

// shutdownWait bounds how long ShutdownAndWait blocks for the actor goroutine
// to exit after Shutdown has been accepted (spec §4.7).
const shutdownWait = 10 * time.Second

// StateSubscription is the external view of a live state feed: a snapshot
// message arrives first, then incremental noderuntime.StateEvent values.
type StateSubscription = snapshotSubscription[noderuntime.StateEvent]

// StatsSubscription is the external view of a live stats feed.
type StatsSubscription = snapshotSubscription[nodestats.Stats]

// Handle is the external API surface over a running Engine (spec §4.7). It
// hides controlCh/queryCh behind named methods and makes shutdown idempotent.
type Handle struct {
	e *Engine

	once     sync.Once
	shutdown error
}

// NewHandle starts e's actor goroutine and returns a Handle bound to it.
func NewHandle(e *Engine) *Handle {
	go e.Run()
	return &Handle{e: e}
}

// SubmitControl applies one control operation and waits for it to commit.
// op must be one of AddNode, RemoveNode, Connect, Disconnect, TuneNode.
func (h *Handle) SubmitControl(op any) error {
	return h.e.submit(op)
}

// GetNodeStates returns the last known state of every live node.
func (h *Handle) GetNodeStates() map[string]noderuntime.StateEvent {
	v, _ := h.e.query(queryNodeStates).(map[string]noderuntime.StateEvent)
	return v
}

// GetNodeStats returns the last emitted stats snapshot of every live node.
func (h *Handle) GetNodeStats() map[string]nodestats.Stats {
	v, _ := h.e.query(queryNodeStats).(map[string]nodestats.Stats)
	return v
}

// nodeInstances returns a snapshot of every live node's concrete instance,
// obtained through the actor's query channel rather than reading Engine's
// internal map directly. Unexported: only this package's own tests use it to
// reach into a builtins node (e.g. *builtins.Sink) for assertions.
func (h *Handle) nodeInstances() map[string]noderuntime.Node {
	v, _ := h.e.query(queryNodeInstances).(map[string]noderuntime.Node)
	return v
}

// distributorFor returns the live distributor for one output pin, obtained
// through the actor's query channel. Unexported: for this package's own
// tests, which need its drop counters without racing Engine's internal map.
func (h *Handle) distributorFor(nodeID, pinName string) (*distributor.Distributor, bool) {
	v := h.e.queryArg(queryDistributor, distKey{NodeID: nodeID, PinName: pinName})
	d, ok := v.(*distributor.Distributor)
	return d, ok
}

// DescribeGraph returns the current node and connection topology.
func (h *Handle) DescribeGraph() GraphDescription {
	v, _ := h.e.query(queryDescribeGraph).(GraphDescription)
	return v
}

// SubscribeState attaches a late-join subscriber to the node-state bus.
func (h *Handle) SubscribeState() *StateSubscription {
	return h.e.stateBus.Subscribe()
}

// UnsubscribeState detaches a subscriber previously returned by SubscribeState.
func (h *Handle) UnsubscribeState(sub *StateSubscription) {
	h.e.stateBus.Unsubscribe(sub)
}

// SubscribeStats attaches a late-join subscriber to the node-stats bus.
func (h *Handle) SubscribeStats() *StatsSubscription {
	return h.e.statsBus.Subscribe()
}

// UnsubscribeStats detaches a subscriber previously returned by SubscribeStats.
func (h *Handle) UnsubscribeStats(sub *StatsSubscription) {
	h.e.statsBus.Unsubscribe(sub)
}

// SubscribeTelemetry attaches a subscriber to the engine's telemetry bus,
// independent of the node-state and node-stats buses (spec §4.6).
func (h *Handle) SubscribeTelemetry() *telemetry.Subscription {
	return h.e.telemetry.Subscribe()
}

// ShutdownAndWait submits Shutdown and blocks until the actor goroutine has
// exited or shutdownWait elapses. It is safe to call more than once; every
// call after the first returns the result of the first.
func (h *Handle) ShutdownAndWait() error {
	h.once.Do(func() {
		err := h.e.submit(Shutdown{})
		if err != nil {
			h.shutdown = err
			return
		}
		select {
		case <-h.e.exited:
		case <-time.After(shutdownWait):
			h.shutdown = engineerr.New(engineerr.Timeout, "engine did not exit within shutdown wait", nil)
		}
	})
	return h.shutdown
}
