// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package builtins provides a small reference node set used by the engine's
// own tests and by callers wiring a pipeline for the first time: a packet
// emitter, a packet recorder, a passthrough, an audio gain filter and a
// Custom-to-Binary JSON encoder (spec_full §3, modeled on the original's
// crates/nodes/src/core and crates/nodes/src/audio packages).
package builtins

import (
	"context"
	"encoding/json"
	"time"

	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/packet"
	"github.com/streamkit-io/streamkit/internal/pin"
	"github.com/streamkit-io/streamkit/internal/registry"
)

// SourceKind is the registry key for Source.
const SourceKind = "source"

// SourceParams configures a Source's emission.
type SourceParams struct {
	Text         string `json:"text"`
	IntervalMs   int    `json:"interval_ms"`
	Count        int    `json:"count"` // 0 means emit until cancelled
}

// Source is a test-only Text packet emitter: one output pin, no inputs. It
// exists so engine tests and examples can exercise a pipeline end to end
// without a real capture device behind it.
type Source struct {
	params SourceParams
}

// NewSource is a registry.Factory for SourceKind.
func NewSource(params json.RawMessage) (noderuntime.Node, error) {
	p := SourceParams{Text: "tick", IntervalMs: 10}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	if p.IntervalMs <= 0 {
		p.IntervalMs = 10
	}
	return &Source{params: p}, nil
}

func (s *Source) Initialize(ctx context.Context) (*noderuntime.PinUpdate, error) { return nil, nil }

func (s *Source) InputPins() []pin.Input { return nil }

func (s *Source) OutputPins() []pin.Output {
	return []pin.Output{{Name: "out", ProducesType: packet.TypeText, Cardinality: pin.Cardinality{Kind: pin.One}}}
}

// Run emits a Text packet every IntervalMs, stopping after Count emissions
// (if nonzero) or on cancellation/shutdown.
func (s *Source) Run(ctx context.Context, nc *noderuntime.Context) error {
	ticker := time.NewTicker(time.Duration(s.params.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	emitted := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ctl := <-nc.ControlRx:
			if ctl.Kind == noderuntime.ControlShutdown {
				return nil
			}
		case <-ticker.C:
			p := packet.Text(s.params.Text)
			if err := nc.Output.Send(ctx, "out", p); err != nil {
				return nil
			}
			nc.StatsTx.IncSent()
			emitted++
			if s.params.Count > 0 && emitted >= s.params.Count {
				return nil
			}
		}
	}
}

// SourceDescriptor returns the registry.Descriptor for Source.
func SourceDescriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:           SourceKind,
		Category:       "source",
		DefaultOutputs: (&Source{}).OutputPins(),
	}
}
