// Package pipeline wires the watcher, manifest, queue, classifier, event
// bus, and ATS collaborator into one explicitly constructed service.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kalambet/cvsift/internal/ats"
	"github.com/kalambet/cvsift/internal/bus"
	"github.com/kalambet/cvsift/internal/classifier"
	"github.com/kalambet/cvsift/internal/extract"
	"github.com/kalambet/cvsift/internal/identity"
	"github.com/kalambet/cvsift/internal/manifest"
	"github.com/kalambet/cvsift/internal/queue"
	"github.com/kalambet/cvsift/internal/reconcile"
	"github.com/kalambet/cvsift/internal/watcher"
)

// MaxConditionChars bounds the fitness condition length.
const MaxConditionChars = 1000

// ErrConditionTooLong is returned by SetCondition for oversized input.
var ErrConditionTooLong = fmt.Errorf("condition exceeds %d characters", MaxConditionChars)

// Decider runs the staged evaluation for one resume.
type Decider interface {
	Classify(ctx context.Context, condition, resumeText string) (classifier.Decision, error)
}

// Options tunes a Service. Zero values pick component defaults.
type Options struct {
	Dir               string
	Condition         string
	Quiescence        time.Duration
	MaxConcurrency    int
	MaxAttempts       int
	KeepAliveInterval time.Duration
}

// Service owns the pipeline lifecycle: discovery feeds the manifest, the
// queue drives classification, transitions fan out over the event bus, and
// terminal rejections trigger ATS archival when the filename carries an
// identity.
type Service struct {
	store     manifest.Store
	bus       *bus.Bus
	extractor extract.Extractor
	decider   Decider
	mover     ats.Mover
	opts      Options
	logger    *slog.Logger

	queue      *queue.Queue
	watcher    *watcher.Watcher
	reconciler *reconcile.Reconciler

	mu        sync.RWMutex
	condition string

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Service. mover may be nil; archival is then skipped.
func New(store manifest.Store, b *bus.Bus, extractor extract.Extractor, decider Decider, mover ats.Mover, opts Options) *Service {
	s := &Service{
		store:     store,
		bus:       b,
		extractor: extractor,
		decider:   decider,
		mover:     mover,
		opts:      opts,
		condition: opts.Condition,
		logger:    slog.Default(),
	}
	s.queue = queue.New(store, s.process, queue.Options{
		MaxConcurrency: opts.MaxConcurrency,
		MaxAttempts:    opts.MaxAttempts,
		OnTransition:   s.onTransition,
	})
	s.watcher = watcher.New(opts.Dir, opts.Quiescence, s.onDiscovered)
	s.reconciler = reconcile.New(store, opts.Dir, s.admit)
	return s
}

// Start launches the queue, the watcher, and the keep-alive ticker, then
// runs one reconciliation sweep to recover work interrupted by a previous
// shutdown.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.queue.Start(s.ctx)
	if err := s.watcher.Start(s.ctx); err != nil {
		s.cancel()
		return fmt.Errorf("starting watcher: %w", err)
	}
	go s.bus.KeepAlive(s.ctx, s.opts.KeepAliveInterval)

	if _, err := s.Reconcile(s.ctx, false); err != nil {
		s.logger.Warn("startup reconciliation failed", "error", err)
	}
	return nil
}

// Shutdown stops discovery and waits for running jobs to settle.
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Shutdown()
	if s.watcher != nil {
		<-s.watcher.Done()
	}
}

// Condition returns the current fitness condition.
func (s *Service) Condition() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.condition
}

// SetCondition replaces the condition used for future admissions. Jobs
// already in flight keep the snapshot they were enqueued with.
func (s *Service) SetCondition(condition string) error {
	if utf8.RuneCountInString(condition) > MaxConditionChars {
		return ErrConditionTooLong
	}
	s.mu.Lock()
	s.condition = condition
	s.mu.Unlock()
	return nil
}

// List returns the manifest contents.
func (s *Service) List() ([]manifest.Entry, error) {
	return s.store.List()
}

// Review records a human verdict for a processed file and publishes the
// label change.
func (s *Service) Review(filename, comment string) error {
	all, err := s.store.ReadAll()
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	if _, ok := all[filename]; !ok {
		return manifest.ErrNotFound
	}

	label := manifest.Reviewed(comment)
	if err := s.store.Upsert(filename, label); err != nil {
		return fmt.Errorf("recording review: %w", err)
	}
	s.bus.Publish(bus.Event{
		Kind:         bus.KindLabel,
		Filename:     filename,
		RelativePath: filename,
		Label:        label,
	})
	return nil
}

// Reconcile runs one sweep; see the reconcile package for semantics.
func (s *Service) Reconcile(ctx context.Context, force bool) (reconcile.Result, error) {
	return s.reconciler.Run(ctx, force)
}

// onDiscovered handles one stable file from the watcher. Initial-scan
// discoveries feed the manifest but are not published; clients list
// initial state over HTTP instead.
func (s *Service) onDiscovered(absPath string, initial bool) {
	filename := filepath.Base(absPath)

	label, err := s.store.AppendIfMissing(filename)
	if err != nil {
		s.logger.Error("recording discovery", "file", filename, "error", err)
		return
	}

	if !initial {
		s.bus.Publish(bus.Event{
			Kind:         bus.KindAdded,
			Filename:     filename,
			RelativePath: filename,
			Label:        label,
		})
	}

	if s.admit(filename, absPath) {
		s.logger.Info("admitted for analysis", "file", filename, "label", label)
	}
}

// admit offers a file to the queue with the current condition snapshot.
func (s *Service) admit(filename, absPath string) bool {
	return s.queue.Enqueue(queue.Job{
		Filename:     filename,
		AbsolutePath: absPath,
		RelativePath: filename,
		Condition:    s.Condition(),
	})
}

// process is the queue's work function: extract, classify, side effects.
func (s *Service) process(ctx context.Context, job queue.Job) (manifest.Status, error) {
	text, err := s.extractor.Text(job.AbsolutePath)
	if err != nil {
		if errors.Is(err, extract.ErrInsufficientText) {
			// Deterministic content failure: finalize without any LLM call.
			s.logger.Info("rejecting unextractable document", "file", job.Filename, "reason", "scan_failed")
			s.archive(job.Filename, "scan_failed")
			return manifest.StatusRejected, nil
		}
		return "", fmt.Errorf("extracting %s: %w", job.Filename, err)
	}

	decision, err := s.decider.Classify(ctx, job.Condition, text)
	if err != nil {
		return "", fmt.Errorf("classifying %s: %w", job.Filename, err)
	}

	s.logger.Info("classified",
		"file", job.Filename,
		"label", decision.Label,
		"candidate", decision.CandidateName,
		"reason", decision.Reason)

	if decision.Label == manifest.StatusRejected {
		s.archive(job.Filename, decision.Reason)
	}
	return decision.Label, nil
}

// onTransition republishes every queue-recorded label change on the bus.
func (s *Service) onTransition(job queue.Job, label manifest.Status) {
	s.bus.Publish(bus.Event{
		Kind:         bus.KindLabel,
		Filename:     job.Filename,
		RelativePath: job.RelativePath,
		Label:        label,
	})
}

// archive asks the ATS to archive the rejected application. Files without
// an embedded identity degrade gracefully: nothing to cross-reference.
func (s *Service) archive(filename, reason string) {
	if s.mover == nil {
		return
	}
	id, ok := identity.FromFilename(filename)
	if !ok {
		s.logger.Debug("no identity in filename, skipping archival", "file", filename)
		return
	}

	ok, err := s.mover.Archive(s.ctx, id.ApplicationID)
	if err != nil {
		s.logger.Warn("archival failed", "file", filename, "application", id.ApplicationID, "error", err)
		return
	}
	if ok {
		s.logger.Info("archived application", "file", filename, "application", id.ApplicationID, "reason", reason)
	}
}
