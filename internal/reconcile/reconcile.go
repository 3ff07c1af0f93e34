// Package reconcile resyncs on-disk files, manifest entries, and queued
// jobs after a restart or on demand.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kalambet/cvsift/internal/manifest"
)

// AdmitFunc offers a recovered file back to the analysis queue and reports
// whether it was accepted.
type AdmitFunc func(filename, absPath string) bool

// Reconciler removes orphaned manifest entries and re-admits files whose
// jobs never reached a terminal label. It recovers work interrupted by a
// crash or restart without requiring a new filesystem event.
type Reconciler struct {
	store  manifest.Store
	dir    string
	admit  AdmitFunc
	logger *slog.Logger
}

// Result summarizes one reconciliation sweep.
type Result struct {
	Removed  int `json:"removed"`
	Requeued int `json:"requeued"`
	Kept     int `json:"kept"`
}

func New(store manifest.Store, dir string, admit AdmitFunc) *Reconciler {
	return &Reconciler{
		store:  store,
		dir:    dir,
		admit:  admit,
		logger: slog.Default(),
	}
}

// Run performs one sweep: manifest entries whose backing file is gone are
// removed; pending and in_progress entries still on disk are offered back
// to the queue. With force set, stuck non-terminal files are additionally
// touched so the watcher re-discovers them.
func (r *Reconciler) Run(ctx context.Context, force bool) (Result, error) {
	var res Result

	all, err := r.store.ReadAll()
	if err != nil {
		return res, fmt.Errorf("reading manifest: %w", err)
	}

	for filename, label := range all {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		path := filepath.Join(r.dir, filename)
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return res, fmt.Errorf("checking %s: %w", filename, err)
			}
			removed, err := r.store.Remove(filename)
			if err != nil {
				return res, fmt.Errorf("removing orphan %s: %w", filename, err)
			}
			if removed {
				r.logger.Info("removed orphaned manifest entry", "file", filename, "label", label)
				res.Removed++
			}
			continue
		}

		if label != manifest.StatusPending && label != manifest.StatusInProgress {
			res.Kept++
			continue
		}

		if r.admit != nil && r.admit(filename, path) {
			r.logger.Info("re-admitted stuck job", "file", filename, "label", label)
			res.Requeued++
			continue
		}
		res.Kept++

		if force {
			now := time.Now()
			if err := os.Chtimes(path, now, now); err != nil {
				r.logger.Warn("touching stuck file", "file", filename, "error", err)
			}
		}
	}

	return res, nil
}
