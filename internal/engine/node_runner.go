// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/streamkit-io/streamkit/internal/distributor"
	"github.com/streamkit-io/streamkit/internal/engineerr"
	"github.com/streamkit-io/streamkit/internal/log"
	"github.com/streamkit-io/streamkit/internal/nodestats"
	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/pin"
)

// statsPollInterval bounds how often a node's Tracker is checked for a
// throttled emission; it must be well under the 2s emit window (spec §4.6).
const statsPollInterval = 250 * time.Millisecond

// nodeOutputSender bridges a node's Output.Send calls to the distributor
// owning each of its output pins (spec §4.5).
type nodeOutputSender struct {
	nodeID string
	dists  func(pinName string) (*distributor.Distributor, bool)
}

func (s *nodeOutputSender) Send(ctx context.Context, pinName string, p any) error {
	d, ok := s.dists(pinName)
	if !ok {
		return distributor.ErrClosed
	}
	select {
	case <-d.Done():
		return distributor.ErrClosed
	default:
	}
	select {
	case d.Inbound() <- p:
		return nil
	case <-d.Done():
		return distributor.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nodeRunner owns one live node instance: its goroutine, mailboxes, and the
// bookkeeping the engine needs to tear it down (spec invariant 5).
type nodeRunner struct {
	id   string
	kind string
	node noderuntime.Node

	inputs    *noderuntime.InputSet // node-owned bounded input queues, safe for concurrent Add
	controlCh chan noderuntime.ControlMessage
	pinMgmtCh chan noderuntime.PinEvent
	output    *nodeOutputSender
	stats     *nodestats.Tracker

	cancel  context.CancelFunc
	ready   chan struct{} // closed once Initialize (and any PinUpdate) has settled
	done    chan struct{}
	initErr error
	runErr  error
}

// run executes Initialize then Run, translating panics into Failed states and
// always emitting a terminal state event before returning (spec §4.2 contract).
// It closes ready once Initialize has settled, so the engine's AddNode
// handler can block until the node's real pin shape (if any PinUpdate) is
// visible before processing the next control message (spec §5 ordering
// guarantee: "An AddNode then Connect... both commit before any subsequent
// control message observes the old state").
func (nr *nodeRunner) run(ctx context.Context, e *Engine) {
	ctx = log.ContextWithNodeID(ctx, nr.id)
	nlog := log.WithContext(ctx, e.log)

	defer close(nr.done)
	readyClosed := false
	closeReady := func() {
		if !readyClosed {
			readyClosed = true
			close(nr.ready)
		}
	}
	defer closeReady()
	defer func() {
		if r := recover(); r != nil {
			nr.runErr = fmt.Errorf("panic: %v", r)
			nlog.Error().Str(log.FieldEvent, "panic").Interface("recovered", r).Msg("node panicked")
			e.publishState(noderuntime.StateEvent{NodeID: nr.id, State: noderuntime.StateFailed, Reason: "panic"})
		}
	}()

	e.publishState(noderuntime.StateEvent{NodeID: nr.id, State: noderuntime.StateInitializing})

	update, err := nr.node.Initialize(ctx)
	if err != nil {
		nr.initErr = engineerr.New(engineerr.Runtime, "node initialize failed", err)
		nr.runErr = nr.initErr
		nlog.Error().Err(err).Msg("node initialize failed")
		e.publishState(noderuntime.StateEvent{NodeID: nr.id, State: noderuntime.StateFailed, Reason: err.Error()})
		closeReady()
		return
	}
	if update != nil {
		e.applyPinUpdate(nr.id, update)
	}

	e.publishState(noderuntime.StateEvent{NodeID: nr.id, State: noderuntime.StateReady})
	closeReady()

	nc := &noderuntime.Context{
		NodeID:          nr.id,
		Inputs:          nr.inputs,
		ControlRx:       nr.controlCh,
		PinManagementRx: nr.pinMgmtCh,
		Output:          nr.output,
		StateTx:         e.stateAggCh,
		StatsTx:         nr.stats,
		Telemetry:       e.telemetry,
		CancellationCtx: ctx,
		BatchSize:       e.opts.PacketBatchSize,
	}

	stopPoll := make(chan struct{})
	go nr.pollStats(e, stopPoll)

	e.publishState(noderuntime.StateEvent{NodeID: nr.id, State: noderuntime.StateRunning})

	runErr := nr.node.Run(ctx, nc)
	close(stopPoll)

	if runErr != nil {
		nr.runErr = runErr
		nlog.Error().Err(runErr).Msg("node run failed")
		e.publishState(noderuntime.StateEvent{NodeID: nr.id, State: noderuntime.StateFailed, Reason: runErr.Error()})
		return
	}
	e.publishState(noderuntime.StateEvent{NodeID: nr.id, State: noderuntime.StateStopped})
}

// pollStats checks the node's Tracker against the throttling rule and
// forwards a snapshot to the engine's stats aggregation channel when due.
func (nr *nodeRunner) pollStats(e *Engine, stop <-chan struct{}) {
	ticker := time.NewTicker(statsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if snap, emit := nr.stats.ShouldEmit(); emit {
				e.publishStats(nr.id, snap)
			}
		}
	}
}

// inputPinsFor returns the node's declared input pins as node.InputPins()
// reports them. A PinUpdate from Initialize is applied to the engine's graph
// by applyPinUpdate and is not reflected here.
func inputPinsFor(node noderuntime.Node) []pin.Input { return node.InputPins() }

// outputPinsFor returns the node's declared output pins.
func outputPinsFor(node noderuntime.Node) []pin.Output { return node.OutputPins() }
