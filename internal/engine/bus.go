// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package engine

import "sync"

// snapshotSubscription is a bounded live feed with late-join semantics: the
// subscriber's first receive is a full snapshot, every later receive is one
// incremental update (spec §4.6).
type snapshotSubscription[T any] struct {
	ch chan any // carries either snapshotMsg[T] once, then T repeatedly

	mu      sync.Mutex
	dropped uint64
}

// snapshotMsg wraps a late-join snapshot so subscribers can distinguish it
// from an incremental update of the same element type T.
type snapshotMsg[T any] struct {
	Snapshot map[string]T
}

// C returns the channel of incoming messages: exactly one snapshotMsg[T]
// first, then a stream of T values.
func (s *snapshotSubscription[T]) C() <-chan any { return s.ch }

// Dropped reports how many updates were skipped because this subscriber's
// queue was full (spec §4.6: "the subscription remains open").
func (s *snapshotSubscription[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// snapshotBus fans per-key updates out to subscribers, each of which first
// receives a snapshot of current state at subscribe time (spec §4.4,
// "Late-join semantics for subscribers").
type snapshotBus[T any] struct {
	cap int

	mu    sync.Mutex
	state map[string]T
	subs  map[*snapshotSubscription[T]]struct{}
}

func newSnapshotBus[T any](capacity int) *snapshotBus[T] {
	if capacity <= 0 {
		capacity = 128
	}
	return &snapshotBus[T]{
		cap:   capacity,
		state: make(map[string]T),
		subs:  make(map[*snapshotSubscription[T]]struct{}),
	}
}

// Publish records the latest value for key and fans it out incrementally to
// existing subscribers.
func (b *snapshotBus[T]) Publish(key string, value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state[key] = value
	for sub := range b.subs {
		select {
		case sub.ch <- value:
		default:
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
		}
	}
}

// Forget removes key from the retained state, e.g. when a node is removed.
func (b *snapshotBus[T]) Forget(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, key)
}

// Subscribe attaches a new subscriber and immediately enqueues a snapshot of
// current state as its first message.
func (b *snapshotBus[T]) Subscribe() *snapshotSubscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := make(map[string]T, len(b.state))
	for k, v := range b.state {
		snap[k] = v
	}

	sub := &snapshotSubscription[T]{ch: make(chan any, b.cap+1)}
	sub.ch <- snapshotMsg[T]{Snapshot: snap}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches sub and closes its channel.
func (b *snapshotBus[T]) Unsubscribe(sub *snapshotSubscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Snapshot returns a copy of the full current state, e.g. for get_node_states.
func (b *snapshotBus[T]) Snapshot() map[string]T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]T, len(b.state))
	for k, v := range b.state {
		out[k] = v
	}
	return out
}

// Shutdown closes every live subscription.
func (b *snapshotBus[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*snapshotSubscription[T]]struct{})
}
