// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package recorder is an opt-in persistence adapter the core engine never
// touches directly: GraphRecorder appends committed control operations to an
// embedded badger log so a restarting caller can replay them, and
// ExportSnapshot writes a point-in-time graph dump atomically.
package recorder

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/renameio/v2"

	"github.com/streamkit-io/streamkit/internal/engine"
	"github.com/streamkit-io/streamkit/internal/log"
)

// record is one logged control operation. Kind selects which of the engine's
// control op types Op decodes into on replay.
type record struct {
	Seq  uint64          `json:"seq"`
	Kind string          `json:"kind"` // add_node, remove_node, connect, disconnect
	Op   json.RawMessage `json:"op"`
}

// GraphRecorder appends committed control operations to an embedded KV log,
// keyed by a monotonically increasing sequence number so replay preserves
// commit order.
type GraphRecorder struct {
	db  *badger.DB
	seq uint64
}

// Open opens (or creates) a recorder log at path.
func Open(path string) (*GraphRecorder, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("recorder: open badger log: %w", err)
	}

	r := &GraphRecorder{db: db}
	if err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("op:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec record
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return err
			}
			r.seq = rec.Seq // zero-padded keys iterate in ascending seq order
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("recorder: recover sequence: %w", err)
	}
	return r, nil
}

// Close closes the underlying log.
func (r *GraphRecorder) Close() error { return r.db.Close() }

func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("op:%020d", seq))
}

func (r *GraphRecorder) append(kind string, op any) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("recorder: marshal %s: %w", kind, err)
	}
	r.seq++
	rec := record{Seq: r.seq, Kind: kind, Op: payload}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("recorder: marshal record: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seqKey(r.seq), buf)
	})
}

// RecordAddNode appends a committed AddNode.
func (r *GraphRecorder) RecordAddNode(op engine.AddNode) error { return r.append("add_node", op) }

// RecordRemoveNode appends a committed RemoveNode.
func (r *GraphRecorder) RecordRemoveNode(op engine.RemoveNode) error {
	return r.append("remove_node", op)
}

// RecordConnect appends a committed Connect.
func (r *GraphRecorder) RecordConnect(op engine.Connect) error { return r.append("connect", op) }

// RecordDisconnect appends a committed Disconnect.
func (r *GraphRecorder) RecordDisconnect(op engine.Disconnect) error {
	return r.append("disconnect", op)
}

// Replay decodes every logged operation in commit order and submits it to h.
// It stops at the first error, since later operations may depend on nodes an
// earlier one would have created.
func (r *GraphRecorder) Replay(h *engine.Handle) error {
	logger := log.WithComponent("recorder")

	return r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("op:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec record
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return fmt.Errorf("recorder: decode record: %w", err)
			}

			op, err := decodeOp(rec)
			if err != nil {
				return err
			}
			if err := h.SubmitControl(op); err != nil {
				return fmt.Errorf("recorder: replay seq %d (%s): %w", rec.Seq, rec.Kind, err)
			}
			logger.Debug().Uint64("seq", rec.Seq).Str(log.FieldKind, rec.Kind).Msg("replayed control op")
		}
		return nil
	})
}

func decodeOp(rec record) (any, error) {
	switch rec.Kind {
	case "add_node":
		var op engine.AddNode
		return op, unmarshalInto(rec.Op, &op)
	case "remove_node":
		var op engine.RemoveNode
		return op, unmarshalInto(rec.Op, &op)
	case "connect":
		var op engine.Connect
		return op, unmarshalInto(rec.Op, &op)
	case "disconnect":
		var op engine.Disconnect
		return op, unmarshalInto(rec.Op, &op)
	default:
		return nil, fmt.Errorf("recorder: unknown record kind %q", rec.Kind)
	}
}

func unmarshalInto(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("recorder: unmarshal op: %w", err)
	}
	return nil
}

// ExportSnapshot writes desc to path as indented JSON, atomically: a crash or
// concurrent reader never observes a partially written file.
func ExportSnapshot(path string, desc engine.GraphDescription) error {
	buf, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("recorder: marshal snapshot: %w", err)
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("recorder: create pending snapshot file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(buf); err != nil {
		return fmt.Errorf("recorder: write snapshot: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("recorder: replace snapshot file: %w", err)
	}
	return nil
}
