// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package graph implements the type-compatibility, cardinality, pin-existence,
// and acyclicity checks the engine runs against a staged copy of state before
// any control mutation commits (spec §4.4, invariants 1-4 in §3).
package graph

import (
	"fmt"

	"github.com/streamkit-io/streamkit/internal/engineerr"
	"github.com/streamkit-io/streamkit/internal/pin"
)

// ConnectionID is the primary key of one edge (spec §3).
type ConnectionID struct {
	FromNode string
	FromPin  string
	ToNode   string
	ToPin    string
}

// NodeShape is the subset of a node instance the validator needs: its current
// input/output pins (which may differ from registry defaults after Initialize
// or a dynamic-pin event).
type NodeShape struct {
	Inputs  []pin.Input
	Outputs []pin.Output
}

func (n NodeShape) findInput(name string) (pin.Input, bool) {
	for _, in := range n.Inputs {
		if in.Name == name || in.Cardinality.InFamily(name) {
			return in, true
		}
	}
	return pin.Input{}, false
}

func (n NodeShape) findOutput(name string) (pin.Output, bool) {
	for _, out := range n.Outputs {
		if out.Name == name || out.Cardinality.InFamily(name) {
			return out, true
		}
	}
	return pin.Output{}, false
}

// Graph is an in-memory projection of node shapes and connections used purely
// for validation; the engine keeps one Graph beside its runtime maps, validates
// a mutation against it, then applies the mutation to both. Clone gives a copy
// for what-if checks.
type Graph struct {
	nodes       map[string]NodeShape
	connections map[ConnectionID]struct{}
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:       make(map[string]NodeShape),
		connections: make(map[ConnectionID]struct{}),
	}
}

// Clone returns a deep-enough copy safe to mutate for a what-if check.
func (g *Graph) Clone() *Graph {
	out := New()
	for id, shape := range g.nodes {
		out.nodes[id] = shape
	}
	for id := range g.connections {
		out.connections[id] = struct{}{}
	}
	return out
}

// PutNode registers or replaces a node's current pin shape.
func (g *Graph) PutNode(nodeID string, shape NodeShape) {
	g.nodes[nodeID] = shape
}

// RemoveNode deletes a node and every connection incident to it.
func (g *Graph) RemoveNode(nodeID string) {
	delete(g.nodes, nodeID)
	for id := range g.connections {
		if id.FromNode == nodeID || id.ToNode == nodeID {
			delete(g.connections, id)
		}
	}
}

// AddConnection records id without validation; callers must call
// ValidateConnect first.
func (g *Graph) AddConnection(id ConnectionID) {
	g.connections[id] = struct{}{}
}

// RemoveConnection deletes id.
func (g *Graph) RemoveConnection(id ConnectionID) {
	delete(g.connections, id)
}

// HasNode reports whether nodeID is registered.
func (g *Graph) HasNode(nodeID string) bool {
	_, ok := g.nodes[nodeID]
	return ok
}

// HasConnection reports whether id is already present.
func (g *Graph) HasConnection(id ConnectionID) bool {
	_, ok := g.connections[id]
	return ok
}

// OutgoingCount returns the number of existing outgoing connections from
// (nodeID, pinName).
func (g *Graph) OutgoingCount(nodeID, pinName string) int {
	n := 0
	for id := range g.connections {
		if id.FromNode == nodeID && id.FromPin == pinName {
			n++
		}
	}
	return n
}

// IncomingCount returns the number of existing incoming connections into
// (nodeID, pinName).
func (g *Graph) IncomingCount(nodeID, pinName string) int {
	n := 0
	for id := range g.connections {
		if id.ToNode == nodeID && id.ToPin == pinName {
			n++
		}
	}
	return n
}

// ValidateConnect checks invariants 1-4 for a proposed connection, against a
// staged copy with the candidate edge hypothetically added. It does not
// mutate g; on success the caller applies the mutation via AddConnection.
func (g *Graph) ValidateConnect(id ConnectionID, mode string) error {
	fromShape, ok := g.nodes[id.FromNode]
	if !ok {
		return engineerr.New(engineerr.Configuration, fmt.Sprintf("unknown node: %s", id.FromNode), nil)
	}
	toShape, ok := g.nodes[id.ToNode]
	if !ok {
		return engineerr.New(engineerr.Configuration, fmt.Sprintf("unknown node: %s", id.ToNode), nil)
	}

	out, ok := fromShape.findOutput(id.FromPin)
	if !ok {
		return engineerr.New(engineerr.Configuration, fmt.Sprintf("output pin %q not found on %q", id.FromPin, id.FromNode), nil)
	}
	in, ok := toShape.findInput(id.ToPin)
	if !ok {
		return engineerr.New(engineerr.Configuration, fmt.Sprintf("input pin %q not found on %q", id.ToPin, id.ToNode), nil)
	}

	if !in.Accepts(out.ProducesType) {
		return engineerr.New(engineerr.Configuration,
			fmt.Sprintf("pin %q on %q does not accept type produced by %q.%q", id.ToPin, id.ToNode, id.FromNode, id.FromPin), nil)
	}

	if g.HasConnection(id) {
		return engineerr.New(engineerr.Conflict, "connection already exists", nil)
	}

	if out.Cardinality.Kind == pin.One && g.OutgoingCount(id.FromNode, id.FromPin) >= 1 {
		return engineerr.New(engineerr.Configuration,
			fmt.Sprintf("output pin %q on %q already has one outgoing connection", id.FromPin, id.FromNode), nil)
	}
	if in.Cardinality.Kind == pin.One && g.IncomingCount(id.ToNode, id.ToPin) >= 1 {
		return engineerr.New(engineerr.Configuration,
			fmt.Sprintf("input pin %q on %q already has one incoming connection", id.ToPin, id.ToNode), nil)
	}

	if g.wouldCycle(id) {
		return engineerr.New(engineerr.Configuration, "connection would introduce a cycle", nil)
	}

	return nil
}

// wouldCycle runs a DFS from id.ToNode looking for a path back to id.FromNode,
// i.e. whether adding FromNode->ToNode closes a cycle (spec §3 invariant 4,
// §4.4 "Cycle check uses a DFS on the projected graph with the candidate edge added").
func (g *Graph) wouldCycle(candidate ConnectionID) bool {
	if candidate.FromNode == candidate.ToNode {
		return true
	}

	visited := make(map[string]bool)
	var visit func(node string) bool
	visit = func(node string) bool {
		if node == candidate.FromNode {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for id := range g.connections {
			if id.FromNode == node {
				if visit(id.ToNode) {
					return true
				}
			}
		}
		return false
	}
	return visit(candidate.ToNode)
}

// ValidateDisconnect checks that id exists.
func (g *Graph) ValidateDisconnect(id ConnectionID) error {
	if !g.HasConnection(id) {
		return engineerr.New(engineerr.NotFound, "connection not found", nil)
	}
	return nil
}
