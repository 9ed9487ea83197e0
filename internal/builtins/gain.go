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

// GainKind is the registry key for Gain.
const GainKind = "gain"

// GainParams configures Gain's sample scaling factor.
type GainParams struct {
	Factor float32 `json:"factor"`
}

// Gain is an audio filter that multiplies every sample by a fixed factor
// (modeled on the original's gain-native example plugin).
type Gain struct {
	factor float32
}

// NewGain is a registry.Factory for GainKind.
func NewGain(params json.RawMessage) (noderuntime.Node, error) {
	p := GainParams{Factor: 1.0}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	return &Gain{factor: p.Factor}, nil
}

func (*Gain) Initialize(ctx context.Context) (*noderuntime.PinUpdate, error) { return nil, nil }

func (*Gain) InputPins() []pin.Input {
	return []pin.Input{{Name: "in", AcceptsTypes: []packet.Type{packet.RawAudio(packet.AudioFormat{})}, Cardinality: pin.Cardinality{Kind: pin.One}}}
}

func (*Gain) OutputPins() []pin.Output {
	return []pin.Output{{Name: "out", ProducesType: packet.RawAudio(packet.AudioFormat{}), Cardinality: pin.Cardinality{Kind: pin.Broadcast}}}
}

// Run scales every incoming audio packet's samples by factor, copy-on-write
// so the shared buffer feeding any other fan-out edge is untouched.
func (g *Gain) Run(ctx context.Context, nc *noderuntime.Context) error {
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
			audio, ok := pkt.AsAudio()
			if !ok {
				nc.StatsTx.IncErrored()
				continue
			}
			owned := audio.CopyOnWrite()
			samples := owned.Samples()
			for i := range samples {
				samples[i] *= g.factor
			}
			if err := nc.Output.Send(ctx, "out", packet.Audio(owned)); err != nil {
				return nil
			}
			nc.StatsTx.IncSent()
		}
	}
}

// GainDescriptor returns the registry.Descriptor for Gain.
func GainDescriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:           GainKind,
		Category:       "filter",
		DefaultInputs:  (&Gain{}).InputPins(),
		DefaultOutputs: (&Gain{}).OutputPins(),
	}
}
