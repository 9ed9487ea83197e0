// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	nodeIDKey ctxKey = "node_id"
	pinKey    ctxKey = "pin"
	connIDKey ctxKey = "conn_id"
)

// ContextWithNodeID stores the owning node's id in ctx, so a logger derived
// via WithContext downstream of a long call chain (Initialize, Run, a
// panic-recover deferred func) picks it up without threading it through
// every signature.
func ContextWithNodeID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, nodeIDKey, id)
}

// ContextWithPin stores the active pin name in ctx.
func ContextWithPin(ctx context.Context, pin string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, pinKey, pin)
}

// ContextWithConnID stores a connection identifier in ctx.
func ContextWithConnID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, connIDKey, id)
}

// NodeIDFromContext extracts the node id from context if present.
func NodeIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(nodeIDKey).(string); ok {
		return v
	}
	return ""
}

// PinFromContext extracts the pin name from context if present.
func PinFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(pinKey).(string); ok {
		return v
	}
	return ""
}

// ConnIDFromContext extracts the connection id from context if present.
func ConnIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(connIDKey).(string); ok {
		return v
	}
	return ""
}

// WithContext enriches the supplied logger with whichever of node_id/pin/
// conn_id ctx carries.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	builder := logger.With()
	added := false
	if id := NodeIDFromContext(ctx); id != "" {
		builder = builder.Str(FieldNodeID, id)
		added = true
	}
	if p := PinFromContext(ctx); p != "" {
		builder = builder.Str(FieldPin, p)
		added = true
	}
	if cid := ConnIDFromContext(ctx); cid != "" {
		builder = builder.Str(FieldConnID, cid)
		added = true
	}
	if !added {
		return logger
	}
	return builder.Logger()
}

// WithComponentFromContext returns a logger annotated with the component
// name and enriched with node/pin/conn fields from ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}

// FromContext returns the logger embedded in ctx via zerolog.Ctx, or the
// base logger if none is present.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		l := Base()
		return &l
	}
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		b := Base()
		return &b
	}
	return l
}
