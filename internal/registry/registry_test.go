// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/pin"
)

type stubNode struct{}

func (stubNode) Initialize(ctx context.Context) (*noderuntime.PinUpdate, error) { return nil, nil }
func (stubNode) Run(ctx context.Context, nc *noderuntime.Context) error         { return nil }
func (stubNode) InputPins() []pin.Input                                        { return nil }
func (stubNode) OutputPins() []pin.Output                                      { return nil }

func stubFactory(params json.RawMessage) (noderuntime.Node, error) {
	return stubNode{}, nil
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	r := New()
	desc := Descriptor{Kind: "identity", Category: "filter"}
	require.NoError(t, r.Register(desc, stubFactory))

	node, err := r.Create("identity", nil)
	require.NoError(t, err)
	assert.IsType(t, stubNode{}, node)

	got, ok := r.Descriptor("identity")
	require.True(t, ok)
	assert.Equal(t, "filter", got.Category)
}

func TestRegistry_DuplicateKindRejected(t *testing.T) {
	r := New()
	desc := Descriptor{Kind: "gain"}
	require.NoError(t, r.Register(desc, stubFactory))
	assert.Error(t, r.Register(desc, stubFactory))
}

func TestRegistry_CreateUnknownKind(t *testing.T) {
	r := New()
	_, err := r.Create("nonexistent", nil)
	assert.Error(t, err)
}

func TestRegistry_ListIsSortedByKind(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Descriptor{Kind: "sink"}, stubFactory))
	require.NoError(t, r.Register(Descriptor{Kind: "gain"}, stubFactory))
	require.NoError(t, r.Register(Descriptor{Kind: "source"}, stubFactory))

	kinds := make([]string, 0, 3)
	for _, d := range r.List() {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []string{"gain", "sink", "source"}, kinds)
}
