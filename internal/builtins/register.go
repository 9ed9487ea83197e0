// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package builtins

import "github.com/streamkit-io/streamkit/internal/registry"

// Register adds every reference node kind to reg. Callers that need only a
// subset can register kinds individually instead.
func Register(reg *registry.Registry) error {
	entries := []struct {
		desc    registry.Descriptor
		factory registry.Factory
	}{
		{SourceDescriptor(), NewSource},
		{SinkDescriptor(), NewSink},
		{IdentityDescriptor(), NewIdentity},
		{GainDescriptor(), NewGain},
		{JSONSerializeDescriptor(), NewJSONSerialize},
	}
	for _, e := range entries {
		if err := reg.Register(e.desc, e.factory); err != nil {
			return err
		}
	}
	return nil
}
