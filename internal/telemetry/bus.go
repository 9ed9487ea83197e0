// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Event is an opaque, structured out-of-band signal emitted by a node
// (codec start/done, discovery of a dynamic pin, a transport handshake, ...).
// Telemetry subscribers receive live events only; there is no late-join
// snapshot (spec §4.6).
type Event struct {
	NodeID string
	Kind   string
	Attrs  map[string]string
	At     time.Time
}

// Bus fans Events out to bounded per-subscriber queues and, independently,
// records each event as a short span named "node.<kind>" on the bus's tracer
// so it shows up in whatever trace backend the deployment wires up.
type Bus struct {
	tracer trace.Tracer
	cap    int

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewBus creates a telemetry bus. capacity bounds each subscriber's queue;
// values <= 0 fall back to 128 to match the engine's subscriber_channel_capacity default.
func NewBus(tracerName string, capacity int) *Bus {
	if capacity <= 0 {
		capacity = 128
	}
	return &Bus{
		tracer: Tracer(tracerName),
		cap:    capacity,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscription is a bounded live feed of telemetry events.
type Subscription struct {
	bus     *Bus
	ch      chan Event
	dropped uint64
	mu      sync.Mutex
}

// C returns the channel of incoming events.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped returns how many events were dropped for this subscriber because
// its queue was full (Resource-kind, logged/counted but never propagated).
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unsubscribes; safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.ch)
	}
	s.bus.mu.Unlock()
}

// Subscribe attaches a new bounded listener.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{bus: b, ch: make(chan Event, b.cap)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish records the event as a short span and fans it out to subscribers,
// dropping for any subscriber whose queue is full rather than blocking the
// data plane.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	_, span := b.tracer.Start(ctx, "node."+ev.Kind, trace.WithAttributes(
		attribute.String("node_id", ev.NodeID),
		attribute.String("event.kind", ev.Kind),
	))
	for k, v := range ev.Attrs {
		span.SetAttributes(attribute.String(k, v))
	}
	span.End()

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
		}
	}
}

// Shutdown closes every live subscription.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*Subscription]struct{})
}
