// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the single actor that owns live graph state,
// serializes control edits, spawns and joins node tasks, and fans out
// observability updates (spec §4.4).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/streamkit-io/streamkit/internal/config"
	"github.com/streamkit-io/streamkit/internal/distributor"
	"github.com/streamkit-io/streamkit/internal/engineerr"
	"github.com/streamkit-io/streamkit/internal/graph"
	"github.com/streamkit-io/streamkit/internal/log"
	"github.com/streamkit-io/streamkit/internal/metrics"
	"github.com/streamkit-io/streamkit/internal/nodestats"
	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/pin"
	"github.com/streamkit-io/streamkit/internal/registry"
	"github.com/streamkit-io/streamkit/internal/telemetry"
)

// distKey identifies one output pin's distributor.
type distKey struct {
	NodeID  string
	PinName string
}

type statsUpdate struct {
	NodeID string
	Stats  nodestats.Stats
}

// Engine is the single actor owning node/connection/distributor state. All
// mutation happens inside Run's select loop; every other accessor goes
// through controlCh or queryCh.
type Engine struct {
	opts     config.Options
	registry *registry.Registry
	telemetry *telemetry.Bus
	log       zerolog.Logger

	controlCh  chan controlRequest
	queryCh    chan queryRequest
	stateAggCh chan noderuntime.StateEvent
	statsAggCh chan statsUpdate

	stateBus *snapshotBus[noderuntime.StateEvent]
	statsBus *snapshotBus[nodestats.Stats]

	g           *graph.Graph
	nodes       map[string]*nodeRunner
	distributors map[distKey]*distributor.Distributor
	modes        map[graph.ConnectionID]distributor.Mode
	edges        map[graph.ConnectionID]*distributor.ChannelEdge
	metricsPrev  map[string]nodestats.Stats

	rootCtx context.Context
	cancel  context.CancelFunc
	exited  chan struct{}
}

// New constructs an Engine; call Run in its own goroutine to start the actor.
func New(reg *registry.Registry, telemetryBus *telemetry.Bus, opts config.Options) *Engine {
	opts = opts.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		opts:         opts,
		registry:     reg,
		telemetry:    telemetryBus,
		log:          log.WithComponent("engine"),
		controlCh:    make(chan controlRequest, opts.EngineControlCapacity),
		queryCh:      make(chan queryRequest, opts.EngineControlCapacity),
		stateAggCh:   make(chan noderuntime.StateEvent, opts.EngineControlCapacity),
		statsAggCh:   make(chan statsUpdate, opts.EngineControlCapacity),
		stateBus:     newSnapshotBus[noderuntime.StateEvent](opts.SubscriberChannelCapacity),
		statsBus:     newSnapshotBus[nodestats.Stats](opts.SubscriberChannelCapacity),
		g:            graph.New(),
		nodes:        make(map[string]*nodeRunner),
		distributors: make(map[distKey]*distributor.Distributor),
		modes:        make(map[graph.ConnectionID]distributor.Mode),
		edges:        make(map[graph.ConnectionID]*distributor.ChannelEdge),
		metricsPrev:  make(map[string]nodestats.Stats),
		rootCtx:      ctx,
		cancel:       cancel,
		exited:       make(chan struct{}),
	}
}

// Run is the engine actor's main loop; it returns once Shutdown completes.
func (e *Engine) Run() {
	defer close(e.exited)

	for {
		select {
		case req := <-e.controlCh:
			if e.handleControl(req) {
				return
			}

		case q := <-e.queryCh:
			e.handleQuery(q)

		case ev := <-e.stateAggCh:
			e.stateBus.Publish(ev.NodeID, ev)

		case su := <-e.statsAggCh:
			prev := e.metricsPrev[su.NodeID]
			metrics.ObserveStats(su.NodeID,
				float64(su.Stats.Received-prev.Received),
				float64(su.Stats.Sent-prev.Sent),
				float64(su.Stats.Discarded-prev.Discarded),
				float64(su.Stats.Errored-prev.Errored),
			)
			e.metricsPrev[su.NodeID] = su.Stats
			e.statsBus.Publish(su.NodeID, su.Stats)
		}
	}
}

// publishState is called by node goroutines via the shared aggregation
// channel; it never blocks the caller beyond the channel's own capacity.
func (e *Engine) publishState(ev noderuntime.StateEvent) {
	if ev.At == 0 {
		ev.At = time.Now().UnixNano()
	}
	metrics.NodeStateTransitions.WithLabelValues(ev.NodeID, string(ev.State)).Inc()
	select {
	case e.stateAggCh <- ev:
	case <-e.rootCtx.Done():
	}
}

func (e *Engine) publishStats(nodeID string, snap nodestats.Stats) {
	select {
	case e.statsAggCh <- statsUpdate{NodeID: nodeID, Stats: snap}:
	case <-e.rootCtx.Done():
	}
}

// submit enqueues a control request and waits for its reply.
func (e *Engine) submit(op any) error {
	reply := make(chan error, 1)
	select {
	case e.controlCh <- controlRequest{op: op, reply: reply}:
	case <-e.exited:
		return engineerr.New(engineerr.Runtime, "engine already shut down", nil)
	}
	select {
	case err := <-reply:
		return err
	case <-e.exited:
		return engineerr.New(engineerr.Runtime, "engine shut down before reply", nil)
	}
}

func (e *Engine) query(kind queryKind) any { return e.queryArg(kind, nil) }

func (e *Engine) queryArg(kind queryKind, arg any) any {
	reply := make(chan any, 1)
	select {
	case e.queryCh <- queryRequest{kind: kind, arg: arg, reply: reply}:
	case <-e.exited:
		return nil
	}
	select {
	case v := <-reply:
		return v
	case <-e.exited:
		return nil
	}
}

// handleControl applies one control operation; it returns true once the
// engine must exit (after Shutdown completes).
func (e *Engine) handleControl(req controlRequest) bool {
	switch op := req.op.(type) {
	case AddNode:
		req.reply <- e.handleAddNode(op)
	case RemoveNode:
		req.reply <- e.handleRemoveNode(op)
	case Connect:
		req.reply <- e.handleConnect(op)
	case Disconnect:
		req.reply <- e.handleDisconnect(op)
	case TuneNode:
		req.reply <- e.handleTuneNode(op)
	case Shutdown:
		e.handleShutdown()
		req.reply <- nil
		return true
	default:
		req.reply <- engineerr.New(engineerr.Configuration, fmt.Sprintf("unknown control op %T", op), nil)
	}
	return false
}

func (e *Engine) handleQuery(q queryRequest) {
	switch q.kind {
	case queryNodeStates:
		q.reply <- e.stateBus.Snapshot()
	case queryNodeStats:
		q.reply <- e.statsBus.Snapshot()
	case queryDescribeGraph:
		q.reply <- e.describeGraph()
	case queryNodeInstances:
		out := make(map[string]noderuntime.Node, len(e.nodes))
		for id, nr := range e.nodes {
			out[id] = nr.node
		}
		q.reply <- out
	case queryDistributor:
		key, _ := q.arg.(distKey)
		d, ok := e.distributors[key]
		if !ok {
			q.reply <- nil
			return
		}
		q.reply <- d
	default:
		q.reply <- nil
	}
}

func (e *Engine) handleAddNode(op AddNode) error {
	if op.NodeID == "" {
		return engineerr.New(engineerr.Configuration, "node_id must not be empty", nil)
	}
	if e.g.HasNode(op.NodeID) {
		return engineerr.New(engineerr.Conflict, fmt.Sprintf("node %q already exists", op.NodeID), nil)
	}

	node, err := e.registry.Create(op.Kind, op.Params)
	if err != nil {
		return engineerr.New(engineerr.Configuration, fmt.Sprintf("create node %q", op.NodeID), err)
	}

	nr := &nodeRunner{
		id:        op.NodeID,
		kind:      op.Kind,
		node:      node,
		inputs:    noderuntime.NewInputSet(nil),
		controlCh: make(chan noderuntime.ControlMessage, e.opts.ControlCapacity),
		pinMgmtCh: make(chan noderuntime.PinEvent, e.opts.ControlCapacity),
		stats:     nodestats.NewTracker(),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	nr.output = &nodeOutputSender{
		nodeID: op.NodeID,
		dists: func(pinName string) (*distributor.Distributor, bool) {
			d, ok := e.distributors[distKey{NodeID: op.NodeID, PinName: pinName}]
			return d, ok
		},
	}

	for _, in := range inputPinsFor(node) {
		if in.Cardinality.Kind != pin.Dynamic {
			nr.inputs.Add(in.Name, make(chan any, e.opts.NodeInputCapacity))
		}
	}

	e.g.PutNode(op.NodeID, graph.NodeShape{Inputs: inputPinsFor(node), Outputs: outputPinsFor(node)})
	e.nodes[op.NodeID] = nr

	ctx, cancel := context.WithCancel(e.rootCtx)
	nr.cancel = cancel
	go nr.run(ctx, e)

	<-nr.ready // block until Initialize (and any PinUpdate) has settled
	if nr.initErr != nil {
		delete(e.nodes, op.NodeID)
		e.g.RemoveNode(op.NodeID)
		return nr.initErr
	}
	return nil
}

// applyPinUpdate replaces a node's current pin shape and allocates input
// channels for any newly declared static input pins (spec §4.2 point 1).
func (e *Engine) applyPinUpdate(nodeID string, update *noderuntime.PinUpdate) {
	nr, ok := e.nodes[nodeID]
	if !ok {
		return
	}
	for _, in := range update.Inputs {
		if in.Cardinality.Kind != pin.Dynamic {
			if _, exists := nr.inputs.Get(in.Name); !exists {
				nr.inputs.Add(in.Name, make(chan any, e.opts.NodeInputCapacity))
			}
		}
	}
	e.g.PutNode(nodeID, graph.NodeShape{Inputs: update.Inputs, Outputs: update.Outputs})
}

func (e *Engine) handleRemoveNode(op RemoveNode) error {
	nr, ok := e.nodes[op.NodeID]
	if !ok {
		return engineerr.New(engineerr.NotFound, fmt.Sprintf("node %q not found", op.NodeID), nil)
	}

	e.teardownIncidentConnections(op.NodeID)

	select {
	case nr.controlCh <- noderuntime.ControlMessage{Kind: noderuntime.ControlShutdown}:
	default:
	}
	nr.cancel()

	select {
	case <-nr.done:
	case <-time.After(e.opts.ShutdownGrace):
		e.log.Warn().Str(log.FieldNodeID, op.NodeID).Msg("node did not stop within shutdown grace")
	}

	delete(e.nodes, op.NodeID)
	e.g.RemoveNode(op.NodeID)
	e.stateBus.Forget(op.NodeID)
	e.statsBus.Forget(op.NodeID)
	delete(e.metricsPrev, op.NodeID)
	return nil
}

// teardownIncidentConnections removes every distributor edge and local
// connection record touching nodeID, as either producer or consumer.
func (e *Engine) teardownIncidentConnections(nodeID string) {
	for id := range e.modes {
		if id.FromNode != nodeID && id.ToNode != nodeID {
			continue
		}
		e.removeConnectionEdge(id)
	}
}

func (e *Engine) handleConnect(op Connect) error {
	id := graph.ConnectionID{FromNode: op.FromNode, FromPin: op.FromPin, ToNode: op.ToNode, ToPin: op.ToPin}
	modeStr := "reliable"
	if op.Mode == distributor.BestEffort {
		modeStr = "best_effort"
	}
	if err := e.g.ValidateConnect(id, modeStr); err != nil {
		return err
	}

	toNode, ok := e.nodes[op.ToNode]
	if !ok {
		return engineerr.New(engineerr.NotFound, fmt.Sprintf("node %q not found", op.ToNode), nil)
	}
	destCh, exists := toNode.inputs.Chan(op.ToPin)
	if !exists {
		toShape, _ := e.shapeOf(op.ToNode)
		in, found := findInput(toShape.Inputs, op.ToPin)
		if !found || in.Cardinality.Kind != pin.Dynamic {
			return engineerr.New(engineerr.Configuration, fmt.Sprintf("input pin %q on %q has no queue", op.ToPin, op.ToNode), nil)
		}
		destCh = make(chan any, e.opts.NodeInputCapacity)
		toNode.inputs.Add(op.ToPin, destCh)
		select {
		case toNode.pinMgmtCh <- noderuntime.PinEvent{Added: &in}:
		default:
			e.log.Warn().Str(log.FieldNodeID, op.ToNode).Msg("pin-management channel full, dynamic pin announcement dropped")
		}
	}

	key := distKey{NodeID: op.FromNode, PinName: op.FromPin}
	d, ok := e.distributors[key]
	if !ok {
		d = distributor.New(op.FromNode, op.FromPin, e.opts.PinDistributorCapacity, e.opts.ControlCapacity,
			distributor.WithDropHook(func(id distributor.ConnectionID) {
				metrics.DistributorDropsTotal.WithLabelValues(id.FromNode, id.FromPin, id.ToNode, id.ToPin).Inc()
			}),
		)
		e.distributors[key] = d
		go d.Run(e.rootCtx)
	}

	edge := distributor.NewChannelEdge(destCh)
	d.Config() <- distributor.AddConnection{
		ID:     distributor.ConnectionID(id),
		Sender: edge,
		Mode:   op.Mode,
	}
	e.edges[id] = edge

	e.g.AddConnection(id)
	e.modes[id] = op.Mode
	return nil
}

func (e *Engine) handleDisconnect(op Disconnect) error {
	id := graph.ConnectionID{FromNode: op.FromNode, FromPin: op.FromPin, ToNode: op.ToNode, ToPin: op.ToPin}
	if err := e.g.ValidateDisconnect(id); err != nil {
		return err
	}
	e.removeConnectionEdge(id)
	return nil
}

// removeConnectionEdge tears down one connection's distributor registration
// (spec §4.3: "the distributor stays alive to absorb reconfiguration"). Close
// is called directly on the edge, not routed through the distributor's own
// config channel: the distributor's single goroutine may currently be parked
// inside a blocking Enqueue on this very edge (a Reliable edge whose
// destination queue is full), and would never drain its config channel to
// observe a RemoveConnection message until that call returns. Closing the
// edge directly aborts the blocking send immediately, so RemoveNode/
// Disconnect never waits on a saturated peer (spec §8 boundary case).
func (e *Engine) removeConnectionEdge(id graph.ConnectionID) {
	if edge, ok := e.edges[id]; ok {
		edge.Close()
		delete(e.edges, id)
	}
	key := distKey{NodeID: id.FromNode, PinName: id.FromPin}
	if d, ok := e.distributors[key]; ok {
		d.Config() <- distributor.RemoveConnection{ID: distributor.ConnectionID(id)}
	}
	e.g.RemoveConnection(id)
	delete(e.modes, id)
}

func (e *Engine) handleTuneNode(op TuneNode) error {
	nr, ok := e.nodes[op.NodeID]
	if !ok {
		return engineerr.New(engineerr.NotFound, fmt.Sprintf("node %q not found", op.NodeID), nil)
	}
	select {
	case nr.controlCh <- op.Message:
		return nil
	default:
		return engineerr.New(engineerr.Resource, fmt.Sprintf("control channel full for node %q", op.NodeID), nil)
	}
}

func (e *Engine) handleShutdown() {
	start := time.Now()

	var g errgroup.Group
	for id, nr := range e.nodes {
		id, nr := id, nr
		g.Go(func() error {
			select {
			case nr.controlCh <- noderuntime.ControlMessage{Kind: noderuntime.ControlShutdown}:
			default:
			}
			nr.cancel()
			select {
			case <-nr.done:
			case <-time.After(e.opts.ShutdownGrace):
				e.log.Warn().Str(log.FieldNodeID, id).Msg("node did not stop within shutdown grace")
			}
			return nil
		})
	}
	_ = g.Wait() // every joined func always returns nil; grace timeout is logged, not propagated

	for key, d := range e.distributors {
		select {
		case d.Config() <- distributor.Shutdown{}:
		default:
		}
		select {
		case <-d.Done():
		case <-time.After(e.opts.ShutdownGrace):
			e.log.Warn().Str(log.FieldNodeID, key.NodeID).Str(log.FieldPin, key.PinName).Msg("distributor did not stop within shutdown grace")
		}
		delete(e.distributors, key)
	}
	metrics.ShutdownDuration.Observe(time.Since(start).Seconds())

	e.nodes = make(map[string]*nodeRunner)
	e.g = graph.New()
	e.modes = make(map[graph.ConnectionID]distributor.Mode)
	e.edges = make(map[graph.ConnectionID]*distributor.ChannelEdge)
	e.metricsPrev = make(map[string]nodestats.Stats)
	e.stateBus.Shutdown()
	e.statsBus.Shutdown()
	e.cancel()
}

func (e *Engine) shapeOf(nodeID string) (graph.NodeShape, bool) {
	nr, ok := e.nodes[nodeID]
	if !ok {
		return graph.NodeShape{}, false
	}
	return graph.NodeShape{Inputs: inputPinsFor(nr.node), Outputs: outputPinsFor(nr.node)}, true
}

func findInput(inputs []pin.Input, name string) (pin.Input, bool) {
	for _, in := range inputs {
		if in.Name == name || in.Cardinality.InFamily(name) {
			return in, true
		}
	}
	return pin.Input{}, false
}

func (e *Engine) describeGraph() GraphDescription {
	states := e.stateBus.Snapshot()
	desc := GraphDescription{}

	for id, nr := range e.nodes {
		st := states[id]
		inNames := nr.inputs.Names()
		outNames := make([]string, 0)
		for key := range e.distributors {
			if key.NodeID == id {
				outNames = append(outNames, key.PinName)
			}
		}
		desc.Nodes = append(desc.Nodes, NodeDescription{
			NodeID: id, Kind: nr.kind, State: st.State, Inputs: inNames, Outputs: outNames,
		})
	}
	for id, mode := range e.modes {
		desc.Connections = append(desc.Connections, ConnectionDescription{
			FromNode: id.FromNode, FromPin: id.FromPin, ToNode: id.ToNode, ToPin: id.ToPin, Mode: mode,
		})
	}
	return desc
}
