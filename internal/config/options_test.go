// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_MatchSpecTable(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 32, d.PacketBatchSize)
	assert.Equal(t, 128, d.NodeInputCapacity)
	assert.Equal(t, 64, d.PinDistributorCapacity)
	assert.Equal(t, 32, d.ControlCapacity)
	assert.Equal(t, 128, d.EngineControlCapacity)
	assert.Equal(t, 128, d.SubscriberChannelCapacity)
	assert.Equal(t, 10*time.Second, d.ShutdownGrace)
}

func TestWithDefaults_FillsOnlyZeroFields(t *testing.T) {
	partial := Options{PacketBatchSize: 99}
	filled := partial.WithDefaults()
	assert.Equal(t, 99, filled.PacketBatchSize)
	assert.Equal(t, 128, filled.NodeInputCapacity)
}

func TestLoadOptions_MissingFileReturnsDefaults(t *testing.T) {
	o, err := LoadOptions(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), o)
}

func TestLoadOptions_ParsesShutdownGraceDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	content := "packet_batch_size: 16\nshutdown_grace: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	o, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 16, o.PacketBatchSize)
	assert.Equal(t, 5*time.Second, o.ShutdownGrace)
	assert.Equal(t, 128, o.NodeInputCapacity, "unset fields still fall back to defaults")
}

func TestLoadDefinition_ParsesNodesAndConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := `
nodes:
  - id: mic
    kind: source
  - id: spk
    kind: sink
connections:
  - from_node: mic
    from_pin: out
    to_node: spk
    to_pin: in
    mode: reliable
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	require.Len(t, def.Nodes, 2)
	require.Len(t, def.Connections, 1)
	assert.Equal(t, "mic", def.Nodes[0].ID)
	assert.Equal(t, "reliable", def.Connections[0].Mode)
}
