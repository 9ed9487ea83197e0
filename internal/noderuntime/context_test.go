// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package noderuntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamkit-io/streamkit/internal/pin"
)

type passthroughNode struct{}

func (passthroughNode) Initialize(ctx context.Context) (*PinUpdate, error) { return nil, nil }
func (passthroughNode) Run(ctx context.Context, nc *Context) error         { return nil }
func (passthroughNode) InputPins() []pin.Input                             { return nil }
func (passthroughNode) OutputPins() []pin.Output                          { return nil }

// Compile-time assertion that passthroughNode satisfies Node.
var _ Node = passthroughNode{}

func TestControlKind_DistinctValues(t *testing.T) {
	assert.NotEqual(t, ControlUpdateParams, ControlStart)
	assert.NotEqual(t, ControlStart, ControlShutdown)
	assert.NotEqual(t, ControlUpdateParams, ControlShutdown)
}

func TestStateEvent_CarriesReasonOnFailure(t *testing.T) {
	ev := StateEvent{NodeID: "n1", State: StateFailed, Reason: "panic in Run"}
	assert.Equal(t, StateFailed, ev.State)
	assert.NotEmpty(t, ev.Reason)
}

func TestPinEvent_AddedOrRemovedNotBoth(t *testing.T) {
	add := pin.Input{Name: "track_1"}
	ev := PinEvent{Added: &add}
	assert.NotNil(t, ev.Added)
	assert.Empty(t, ev.Removed)

	rm := PinEvent{Removed: "track_1"}
	assert.Nil(t, rm.Added)
	assert.Equal(t, "track_1", rm.Removed)
}
