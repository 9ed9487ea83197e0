// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/streamkit-io/streamkit/internal/log"
)

// debounceWindow absorbs editor save sequences (write-then-rename) into a
// single reload.
const debounceWindow = 500 * time.Millisecond

// DefinitionWatcher watches one pipeline-definition file and invokes onChange
// with the freshly parsed Definition whenever it changes on disk. It does not
// itself diff against the running graph — that is the caller's job (spec §6:
// definitions are replayed as AddNode/Connect by an upstream collaborator).
type DefinitionWatcher struct {
	path      string
	onChange  func(*Definition, error)
	log       zerolog.Logger
	watcher   *fsnotify.Watcher
}

// NewDefinitionWatcher creates a watcher for the pipeline definition at path.
func NewDefinitionWatcher(path string, onChange func(*Definition, error)) *DefinitionWatcher {
	return &DefinitionWatcher{
		path:     path,
		onChange: onChange,
		log:      log.WithComponent("config.watcher"),
	}
}

// Start begins watching until ctx is canceled. It blocks setup only; the
// watch loop runs in its own goroutine.
func (w *DefinitionWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	go w.loop(ctx)
	return nil
}

func (w *DefinitionWatcher) loop(ctx context.Context) {
	base := filepath.Base(w.path)
	var debounce *time.Timer

	reload := func() {
		def, err := LoadDefinition(w.path)
		if err != nil {
			w.log.Error().Err(err).Msg("pipeline definition reload failed")
		}
		w.onChange(def, err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("pipeline definition watcher error")
		}
	}
}

// Close stops the underlying filesystem watcher immediately.
func (w *DefinitionWatcher) Close() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}
