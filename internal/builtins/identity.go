// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package builtins

import (
	"context"
	"encoding/json"

	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/packet"
	"github.com/streamkit-io/streamkit/internal/pin"
	"github.com/streamkit-io/streamkit/internal/registry"
)

// IdentityKind is the registry key for Identity.
const IdentityKind = "identity"

// Identity is a single in/out passthrough, used by the engine's own
// cycle-rejection scenario and as the simplest possible filter stage.
type Identity struct{}

// NewIdentity is a registry.Factory for IdentityKind.
func NewIdentity(params json.RawMessage) (noderuntime.Node, error) {
	return &Identity{}, nil
}

func (Identity) Initialize(ctx context.Context) (*noderuntime.PinUpdate, error) { return nil, nil }

func (Identity) InputPins() []pin.Input {
	return []pin.Input{{Name: "in", AcceptsTypes: []packet.Type{packet.Any}, Cardinality: pin.Cardinality{Kind: pin.Broadcast}}}
}

func (Identity) OutputPins() []pin.Output {
	return []pin.Output{{Name: "out", ProducesType: packet.Any, Cardinality: pin.Cardinality{Kind: pin.Broadcast}}}
}

// Run forwards every packet received on "in" to "out" unchanged.
func (Identity) Run(ctx context.Context, nc *noderuntime.Context) error {
	in, _ := nc.Inputs.Get("in")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ctl := <-nc.ControlRx:
			if ctl.Kind == noderuntime.ControlShutdown {
				return nil
			}
		case p, ok := <-in:
			if !ok {
				return nil
			}
			nc.StatsTx.IncReceived()
			if err := nc.Output.Send(ctx, "out", p); err != nil {
				return nil
			}
			nc.StatsTx.IncSent()
		}
	}
}

// IdentityDescriptor returns the registry.Descriptor for Identity.
func IdentityDescriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:           IdentityKind,
		Category:       "filter",
		DefaultInputs:  Identity{}.InputPins(),
		DefaultOutputs: Identity{}.OutputPins(),
	}
}
