// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package pin defines the named, typed ports on a node (spec §3).
package pin

import (
	"fmt"
	"strings"

	"github.com/streamkit-io/streamkit/internal/packet"
)

// CardinalityKind selects how many edges a pin may participate in.
type CardinalityKind int

const (
	// One allows at most one outgoing (output) or incoming (input) connection.
	One CardinalityKind = iota
	// Broadcast allows many connections.
	Broadcast
	// Dynamic means the node creates pins on demand named "{prefix}_{index}".
	Dynamic
)

// Cardinality pairs a CardinalityKind with the prefix Dynamic needs.
type Cardinality struct {
	Kind   CardinalityKind
	Prefix string // only meaningful when Kind == Dynamic
}

func (c Cardinality) String() string {
	switch c.Kind {
	case One:
		return "One"
	case Broadcast:
		return "Broadcast"
	case Dynamic:
		return fmt.Sprintf("Dynamic{%s}", c.Prefix)
	default:
		return "Unknown"
	}
}

// DynamicName builds the "{prefix}_{index}" pin name for a Dynamic-cardinality family.
func (c Cardinality) DynamicName(index int) string {
	return fmt.Sprintf("%s_%d", c.Prefix, index)
}

// InFamily reports whether pinName belongs to this Dynamic cardinality's family.
func (c Cardinality) InFamily(pinName string) bool {
	if c.Kind != Dynamic {
		return false
	}
	return strings.HasPrefix(pinName, c.Prefix+"_")
}

// Input is a named input port accepting one or more PacketTypes.
type Input struct {
	Name         string
	AcceptsTypes []packet.Type
	Cardinality  Cardinality
}

// Accepts reports whether t is accepted by this input pin (spec invariant 1).
func (in Input) Accepts(t packet.Type) bool {
	for _, accepted := range in.AcceptsTypes {
		if packet.Accepts(accepted, t) {
			return true
		}
	}
	return false
}

// Output is a named output port producing exactly one PacketType.
type Output struct {
	Name         string
	ProducesType packet.Type
	Cardinality  Cardinality
}
