// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay quiet before it is annotated.
const DefaultSettle = 300 * time.Millisecond

// Watch annotates files created or modified under src until ctx ends.
//
// # Description
//
// src must live on the OS filesystem. Subdirectories are watched too,
// including ones created later. Events for one file are coalesced: the
// file is annotated once it has been quiet for settle. A settle of zero
// uses DefaultSettle.
//
// # Outputs
//
//   - error: nil when ctx ended, otherwise the watcher error.
func (a *Annotator) Watch(ctx context.Context, src *FSStore, dst Store, settle time.Duration) error {
	if settle <= 0 {
		settle = DefaultSettle
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, src.Root()); err != nil {
		return err
	}
	a.logger.Info("watching for ALTO documents", slog.String("source", src.Root()), slog.String("target", dst.String()))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := addTree(w, ev.Name); err != nil {
					a.logger.Warn("cannot watch directory", slog.String("dir", ev.Name), slog.String("error", err.Error()))
				}
				continue
			}
			rel, err := filepath.Rel(src.Root(), ev.Name)
			if err != nil {
				continue
			}
			pending[filepath.ToSlash(rel)] = time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", src.Root(), err)

		case now := <-ticker.C:
			for name, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, name)
				stats, err := a.ProcessFile(ctx, src, dst, name)
				switch {
				case err == nil:
					a.logger.Info("annotated", slog.String("document", name), slog.Int("linked", stats.Linked))
				case errors.Is(err, ErrNotALTO):
					a.logger.Debug("skipped", slog.String("document", name))
				default:
					a.logger.Warn("annotation failed", slog.String("document", name), slog.String("error", err.Error()))
				}
			}
		}
	}
}

// addTree watches dir and every directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}
