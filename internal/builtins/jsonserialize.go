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

// JSONSerializeKind is the registry key for JSONSerialize.
const JSONSerializeKind = "jsonserialize"

// jsonEnvelope is the wire shape written for every Custom packet passed
// through (modeled on the original's json_serialize node).
type jsonEnvelope struct {
	TypeID string            `json:"type_id"`
	Value  json.RawMessage   `json:"value"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// JSONSerialize encodes Custom packets to Binary JSON, for callers that need
// a wire-ready representation of a structured result (e.g. a transcription
// or detector output) without writing their own encoder.
type JSONSerialize struct{}

// NewJSONSerialize is a registry.Factory for JSONSerializeKind.
func NewJSONSerialize(params json.RawMessage) (noderuntime.Node, error) {
	return &JSONSerialize{}, nil
}

func (*JSONSerialize) Initialize(ctx context.Context) (*noderuntime.PinUpdate, error) {
	return nil, nil
}

func (*JSONSerialize) InputPins() []pin.Input {
	return []pin.Input{{Name: "in", AcceptsTypes: []packet.Type{packet.Any}, Cardinality: pin.Cardinality{Kind: pin.One}}}
}

func (*JSONSerialize) OutputPins() []pin.Output {
	return []pin.Output{{Name: "out", ProducesType: packet.TypeBinary, Cardinality: pin.Cardinality{Kind: pin.Broadcast}}}
}

// Run encodes every incoming Custom packet into a Binary envelope.
func (*JSONSerialize) Run(ctx context.Context, nc *noderuntime.Context) error {
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
			pkt, ok := p.(packet.Packet)
			if !ok {
				nc.StatsTx.IncErrored()
				continue
			}
			typeID, _, value, meta, ok := pkt.AsCustom()
			if !ok {
				nc.StatsTx.IncErrored()
				continue
			}
			encoded, err := json.Marshal(jsonEnvelope{TypeID: typeID, Value: value, Meta: meta})
			if err != nil {
				nc.StatsTx.IncErrored()
				continue
			}
			out := packet.Binary(encoded, "application/json", nil)
			if err := nc.Output.Send(ctx, "out", out); err != nil {
				return nil
			}
			nc.StatsTx.IncSent()
		}
	}
}

// JSONSerializeDescriptor returns the registry.Descriptor for JSONSerialize.
func JSONSerializeDescriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:           JSONSerializeKind,
		Category:       "codec",
		DefaultInputs:  (&JSONSerialize{}).InputPins(),
		DefaultOutputs: (&JSONSerialize{}).OutputPins(),
	}
}
