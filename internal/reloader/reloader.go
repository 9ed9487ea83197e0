// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package reloader diffs a saved pipeline definition against the engine's
// live graph and replays only the difference: field-level change detection
// applied to nodes and connections instead of config struct fields.
package reloader

import (
	"fmt"

	"github.com/streamkit-io/streamkit/internal/config"
	"github.com/streamkit-io/streamkit/internal/distributor"
	"github.com/streamkit-io/streamkit/internal/engine"
)

// connKey is the comparable form of one saved or live connection.
type connKey struct {
	FromNode, FromPin, ToNode, ToPin string
}

func modeOf(s string) distributor.Mode {
	if s == "best_effort" {
		return distributor.BestEffort
	}
	return distributor.Reliable
}

// Plan is the set of control operations needed to bring the live graph to
// match a Definition. Connections touching a removed or re-kinded node are
// always disconnected before that node is removed, and reconnected after its
// replacement is added, so Apply never leaves a dangling edge mid-replay.
type Plan struct {
	Disconnects []engine.Disconnect
	Removes     []engine.RemoveNode
	Adds        []engine.AddNode
	Connects    []engine.Connect
}

// Diff compares def against the current graph snapshot and returns the
// ordered Plan to reconcile them.
func Diff(def *config.Definition, current engine.GraphDescription) Plan {
	wantNodes := make(map[string]config.NodeDef, len(def.Nodes))
	for _, n := range def.Nodes {
		wantNodes[n.ID] = n
	}
	haveNodes := make(map[string]string, len(current.Nodes)) // id -> kind
	for _, n := range current.Nodes {
		haveNodes[n.NodeID] = n.Kind
	}

	wantConns := make(map[connKey]config.ConnectionDef, len(def.Connections))
	for _, c := range def.Connections {
		wantConns[connKey{c.FromNode, c.FromPin, c.ToNode, c.ToPin}] = c
	}
	haveConns := make(map[connKey]distributor.Mode, len(current.Connections))
	for _, c := range current.Connections {
		haveConns[connKey{c.FromNode, c.FromPin, c.ToNode, c.ToPin}] = c.Mode
	}

	var plan Plan

	// Connections absent from the desired set, or whose endpoint node is
	// being replaced, must be torn down first.
	replacedNode := func(id string) bool {
		def, ok := wantNodes[id]
		kind, exists := haveNodes[id]
		return exists && (!ok || def.Kind != kind)
	}
	for key := range haveConns {
		_, wanted := wantConns[key]
		if !wanted || replacedNode(key.FromNode) || replacedNode(key.ToNode) {
			plan.Disconnects = append(plan.Disconnects, engine.Disconnect{
				FromNode: key.FromNode, FromPin: key.FromPin, ToNode: key.ToNode, ToPin: key.ToPin,
			})
		}
	}

	for id, kind := range haveNodes {
		def, ok := wantNodes[id]
		if !ok || def.Kind != kind {
			plan.Removes = append(plan.Removes, engine.RemoveNode{NodeID: id})
		}
	}

	for id, def := range wantNodes {
		kind, exists := haveNodes[id]
		if !exists || kind != def.Kind {
			plan.Adds = append(plan.Adds, engine.AddNode{NodeID: def.ID, Kind: def.Kind, Params: def.Params})
		}
	}

	for key, c := range wantConns {
		mode, exists := haveConns[key]
		if !exists || mode != modeOf(c.Mode) || replacedNode(key.FromNode) || replacedNode(key.ToNode) {
			plan.Connects = append(plan.Connects, engine.Connect{
				FromNode: key.FromNode, FromPin: key.FromPin, ToNode: key.ToNode, ToPin: key.ToPin, Mode: modeOf(c.Mode),
			})
		}
	}

	return plan
}

// Apply submits every operation in p, in order, via h. It stops at the first
// error; the caller decides whether a partial replay is acceptable.
func Apply(h *engine.Handle, p Plan) error {
	for _, op := range p.Disconnects {
		if err := h.SubmitControl(op); err != nil {
			return fmt.Errorf("reloader: disconnect %s.%s->%s.%s: %w", op.FromNode, op.FromPin, op.ToNode, op.ToPin, err)
		}
	}
	for _, op := range p.Removes {
		if err := h.SubmitControl(op); err != nil {
			return fmt.Errorf("reloader: remove node %s: %w", op.NodeID, err)
		}
	}
	for _, op := range p.Adds {
		if err := h.SubmitControl(op); err != nil {
			return fmt.Errorf("reloader: add node %s: %w", op.NodeID, err)
		}
	}
	for _, op := range p.Connects {
		if err := h.SubmitControl(op); err != nil {
			return fmt.Errorf("reloader: connect %s.%s->%s.%s: %w", op.FromNode, op.FromPin, op.ToNode, op.ToPin, err)
		}
	}
	return nil
}
