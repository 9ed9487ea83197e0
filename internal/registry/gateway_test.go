// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportGateway_PutGetRemove(t *testing.T) {
	g := NewTransportGateway()

	_, ok := g.Get("conn-1")
	assert.False(t, ok)

	g.Put("conn-1", "handle-a")
	v, ok := g.Get("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "handle-a", v)

	g.Remove("conn-1")
	_, ok = g.Get("conn-1")
	assert.False(t, ok)
}
