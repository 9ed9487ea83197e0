// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package pin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamkit-io/streamkit/internal/packet"
)

func TestInput_Accepts(t *testing.T) {
	in := Input{Name: "in", AcceptsTypes: []packet.Type{packet.TypeText, packet.TypeBinary}}
	assert.True(t, in.Accepts(packet.TypeText))
	assert.True(t, in.Accepts(packet.TypeBinary))
	assert.False(t, in.Accepts(packet.TypeTranscription))
}

func TestCardinality_DynamicFamily(t *testing.T) {
	c := Cardinality{Kind: Dynamic, Prefix: "track"}
	name := c.DynamicName(3)
	assert.Equal(t, "track_3", name)
	assert.True(t, c.InFamily(name))
	assert.False(t, c.InFamily("other_3"))
}
