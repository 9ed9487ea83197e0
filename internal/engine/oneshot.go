// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"

	"github.com/streamkit-io/streamkit/internal/config"
	"github.com/streamkit-io/streamkit/internal/registry"
	"github.com/streamkit-io/streamkit/internal/telemetry"
)

// OneshotSpec describes a single pipeline to run to completion: every node in
// order, then every edge in order with the mode the caller gave it, then shut
// down once the caller's done func returns.
type OneshotSpec struct {
	Nodes []AddNode   // applied in order
	Edges []Connect   // applied in order, after every node exists
}

// RunOneshot is a degenerate single-use engine: build a registry-backed
// Engine, apply Nodes then Edges, invoke done, then shut everything down.
// It exists for callers (and tests) that want one pipeline run to completion
// without managing a Handle's lifecycle themselves (spec_full §3, mirroring
// the original's oneshot_linear test helper).
func RunOneshot(reg *registry.Registry, opts config.Options, spec OneshotSpec, done func(*Handle) error) error {
	e := New(reg, telemetry.NewBus("streamkit-oneshot", opts.SubscriberChannelCapacity), opts)
	h := NewHandle(e)
	defer func() { _ = h.ShutdownAndWait() }()

	for _, n := range spec.Nodes {
		if err := h.SubmitControl(n); err != nil {
			return fmt.Errorf("oneshot: add node %q: %w", n.NodeID, err)
		}
	}
	for _, c := range spec.Edges {
		if err := h.SubmitControl(c); err != nil {
			return fmt.Errorf("oneshot: connect %s.%s -> %s.%s: %w", c.FromNode, c.FromPin, c.ToNode, c.ToPin, err)
		}
	}

	return done(h)
}
