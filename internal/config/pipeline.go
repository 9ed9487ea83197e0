// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeDef is one saved node in a pipeline definition document (spec §6,
// "Persisted state": the caller's own document replayed via AddNode/Connect).
type NodeDef struct {
	ID     string          `yaml:"id"`
	Kind   string          `yaml:"kind"`
	Params json.RawMessage `yaml:"params,omitempty"`
}

// ConnectionDef is one saved edge in a pipeline definition document.
type ConnectionDef struct {
	FromNode string `yaml:"from_node"`
	FromPin  string `yaml:"from_pin"`
	ToNode   string `yaml:"to_node"`
	ToPin    string `yaml:"to_pin"`
	Mode     string `yaml:"mode"` // "reliable" or "best_effort"
}

// Definition is a full saved pipeline: nodes and connections in the order
// they must be replayed (AddNode before any Connect that references it).
type Definition struct {
	Nodes       []NodeDef       `yaml:"nodes"`
	Connections []ConnectionDef `yaml:"connections"`
}

// LoadDefinition parses a pipeline definition document from path.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read pipeline definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("config: parse pipeline definition: %w", err)
	}
	return &def, nil
}
