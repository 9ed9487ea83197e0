// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maps node kind names to factories and the descriptor
// metadata that drives graph validation and discovery (spec §4.1).
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/pin"
)

// Descriptor is the static metadata a registered kind publishes, independent
// of any live node instance. The engine's validator and DescribeGraph work
// from the pins of live node instances, not from Descriptors.
type Descriptor struct {
	Kind           string
	Category       string // e.g. "source", "sink", "filter", "codec"
	Bidirectional  bool
	DefaultInputs  []pin.Input
	DefaultOutputs []pin.Output
	ParamSchema    json.RawMessage // raw JSON Schema, opaque to the engine
}

// Factory constructs a Node from its raw JSON params (spec §4.1).
type Factory func(params json.RawMessage) (noderuntime.Node, error)

type entry struct {
	desc    Descriptor
	factory Factory
}

// Registry is safe for concurrent use; built-ins and plugin kinds register
// once at startup, reads happen continuously during graph mutation.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a kind. It returns an error if the kind is already registered,
// mirroring the engine's conflict-is-an-error stance (spec §7, Conflict).
func (r *Registry) Register(desc Descriptor, factory Factory) error {
	if desc.Kind == "" {
		return fmt.Errorf("registry: descriptor Kind must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("registry: factory for kind %q must not be nil", desc.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[desc.Kind]; exists {
		return fmt.Errorf("registry: kind %q already registered", desc.Kind)
	}
	r.entries[desc.Kind] = entry{desc: desc, factory: factory}
	return nil
}

// Create instantiates a Node of the given kind, decoding params through its factory.
func (r *Registry) Create(kind string, params json.RawMessage) (noderuntime.Node, error) {
	r.mu.RLock()
	e, ok := r.entries[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown node kind %q", kind)
	}
	return e.factory(params)
}

// Descriptor returns the Descriptor registered for kind.
func (r *Registry) Descriptor(kind string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[kind]
	return e.desc, ok
}

// List returns all registered descriptors sorted by Kind, for discovery.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
