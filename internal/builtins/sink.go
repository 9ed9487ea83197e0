// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package builtins

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/packet"
	"github.com/streamkit-io/streamkit/internal/pin"
	"github.com/streamkit-io/streamkit/internal/registry"
)

// SinkKind is the registry key for Sink.
const SinkKind = "sink"

// Sink is a test-only packet recorder: one input pin, no outputs. Received
// packets accumulate in order and are readable via Received without racing
// the node's own goroutine.
type Sink struct {
	mu       sync.Mutex
	received []packet.Packet
}

// NewSink is a registry.Factory for SinkKind.
func NewSink(params json.RawMessage) (noderuntime.Node, error) {
	return &Sink{}, nil
}

func (s *Sink) Initialize(ctx context.Context) (*noderuntime.PinUpdate, error) { return nil, nil }

func (s *Sink) InputPins() []pin.Input {
	return []pin.Input{{Name: "in", AcceptsTypes: []packet.Type{packet.Any}, Cardinality: pin.Cardinality{Kind: pin.One}}}
}

func (s *Sink) OutputPins() []pin.Output { return nil }

// Received returns a copy of every packet received so far, in arrival order.
func (s *Sink) Received() []packet.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]packet.Packet, len(s.received))
	copy(out, s.received)
	return out
}

// Run drains its input channel until it closes or cancellation/shutdown.
func (s *Sink) Run(ctx context.Context, nc *noderuntime.Context) error {
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
			pkt, ok := p.(packet.Packet)
			if !ok {
				nc.StatsTx.IncErrored()
				continue
			}
			s.mu.Lock()
			s.received = append(s.received, pkt)
			s.mu.Unlock()
			nc.StatsTx.IncReceived()
		}
	}
}

// SinkDescriptor returns the registry.Descriptor for Sink.
func SinkDescriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:          SinkKind,
		Category:      "sink",
		DefaultInputs: (&Sink{}).InputPins(),
	}
}
