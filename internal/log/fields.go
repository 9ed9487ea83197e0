// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package log

// Canonical field name constants for structured logging (spec_full §1.1):
// every engine log line that tags a node, pin, connection or lifecycle
// transition uses one of these instead of a hand-typed string, so a field
// never silently drifts between call sites.
const (
	FieldComponent     = "component"
	FieldEvent         = "event"
	FieldNodeID        = "node_id"
	FieldPin           = "pin"
	FieldConnID        = "conn_id"
	FieldDistributorID = "distributor_id"
	FieldKind          = "kind"
	FieldOldState      = "old_state"
	FieldNewState      = "new_state"
)
