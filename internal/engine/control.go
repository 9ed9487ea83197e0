// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"

	"github.com/streamkit-io/streamkit/internal/distributor"
	"github.com/streamkit-io/streamkit/internal/noderuntime"
)

// AddNode constructs a node of kind via the registry and spawns its run task
// (spec §4.4 control table).
type AddNode struct {
	NodeID string
	Kind   string
	Params json.RawMessage
}

// RemoveNode tears a node down: Shutdown, incident connections removed, task joined.
type RemoveNode struct {
	NodeID string
}

// Connect creates a bounded edge between two existing pins.
type Connect struct {
	FromNode string
	FromPin  string
	ToNode   string
	ToPin    string
	Mode     distributor.Mode
}

// Disconnect removes one existing edge.
type Disconnect struct {
	FromNode string
	FromPin  string
	ToNode   string
	ToPin    string
}

// TuneNode forwards an opaque control message to one node; the engine does
// not interpret the payload (spec §4.4).
type TuneNode struct {
	NodeID  string
	Message noderuntime.ControlMessage
}

// Shutdown tears down every node and distributor and stops the engine actor.
type Shutdown struct{}

// controlRequest is the envelope the engine actor processes in arrival order.
type controlRequest struct {
	op    any // one of AddNode, RemoveNode, Connect, Disconnect, TuneNode, Shutdown
	reply chan error
}

// queryKind selects which read-only query a queryRequest performs.
type queryKind int

const (
	queryNodeStates queryKind = iota
	queryNodeStats
	queryDescribeGraph
	queryNodeInstances
	queryDistributor
)

type queryRequest struct {
	kind  queryKind
	arg   any // queryDistributor: distKey
	reply chan any
}

// NodeDescription is one entry of a DescribeGraph response.
type NodeDescription struct {
	NodeID  string
	Kind    string
	State   noderuntime.State
	Inputs  []string
	Outputs []string
}

// ConnectionDescription is one entry of a DescribeGraph response.
type ConnectionDescription struct {
	FromNode string
	FromPin  string
	ToNode   string
	ToPin    string
	Mode     distributor.Mode
}

// GraphDescription is the full DescribeGraph snapshot.
type GraphDescription struct {
	Nodes       []NodeDescription
	Connections []ConnectionDescription
}
