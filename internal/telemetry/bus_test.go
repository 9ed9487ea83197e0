// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus("test", 4)
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(context.Background(), Event{NodeID: "n1", Kind: "codec.start"})

	select {
	case ev := <-sub.C():
		assert.Equal(t, "n1", ev.NodeID)
		assert.Equal(t, "codec.start", ev.Kind)
	default:
		t.Fatal("expected event to be delivered")
	}
}

func TestBus_DropsWhenSubscriberFull(t *testing.T) {
	b := NewBus("test", 1)
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(context.Background(), Event{NodeID: "n1", Kind: "a"})
	b.Publish(context.Background(), Event{NodeID: "n1", Kind: "b"}) // queue full, dropped

	require.Equal(t, uint64(1), sub.Dropped())
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	b := NewBus("test", 1)
	sub := b.Subscribe()
	sub.Close()
	assert.NotPanics(t, func() { sub.Close() })
}
