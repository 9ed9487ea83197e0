// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOptions reads Options from a YAML file at path and fills any unset
// field with its default. A missing file is not an error; callers get
// Defaults().
func LoadOptions(path string) (Options, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	if err != nil {
		return Options{}, fmt.Errorf("config: read options file: %w", err)
	}

	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("config: parse options file: %w", err)
	}
	return o.WithDefaults(), nil
}
