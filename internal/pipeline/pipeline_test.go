package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/cvsift/internal/ats"
	"github.com/kalambet/cvsift/internal/bus"
	"github.com/kalambet/cvsift/internal/classifier"
	"github.com/kalambet/cvsift/internal/extract"
	"github.com/kalambet/cvsift/internal/manifest"
)

// --- mocks ---

type mockExtractor struct {
	textFn func(path string) (string, error)
}

func (m *mockExtractor) Text(path string) (string, error) {
	return m.textFn(path)
}

type mockDecider struct {
	calls      atomic.Int32
	classifyFn func(ctx context.Context, condition, resumeText string) (classifier.Decision, error)
}

func (m *mockDecider) Classify(ctx context.Context, condition, resumeText string) (classifier.Decision, error) {
	m.calls.Add(1)
	return m.classifyFn(ctx, condition, resumeText)
}

type mockMover struct {
	mu       sync.Mutex
	archived []uuid.UUID
}

func (m *mockMover) Archive(_ context.Context, applicationID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived = append(m.archived, applicationID)
	return true, nil
}

func (m *mockMover) MoveStage(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return true, nil
}

func (m *mockMover) archivedIDs() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.archived...)
}

// --- helpers ---

type labelCollector struct {
	mu     sync.Mutex
	events []bus.Event
	ch     chan bus.Event
}

func collectLabels(b *bus.Bus) *labelCollector {
	c := &labelCollector{ch: make(chan bus.Event, 64)}
	b.On(bus.KindLabel, func(e bus.Event) {
		c.mu.Lock()
		c.events = append(c.events, e)
		c.mu.Unlock()
		c.ch <- e
	})
	return c
}

func (c *labelCollector) await(t *testing.T, filename string, label manifest.Status) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case e := <-c.ch:
			if e.Filename == filename && e.Label == label {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s to reach %q", filename, label)
		}
	}
}

func openTestStore(t *testing.T) manifest.Store {
	t.Helper()
	s, err := manifest.OpenFile(filepath.Join(t.TempDir(), "manifest.csv"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func startTestService(t *testing.T, dir string, b *bus.Bus, extractor extract.Extractor, decider Decider, mover *mockMover) *Service {
	t.Helper()
	var m ats.Mover
	if mover != nil {
		m = mover
	}
	s := New(openTestStore(t), b, extractor, decider, m, Options{
		Dir:        dir,
		Condition:  "senior Go engineer",
		Quiescence: 100 * time.Millisecond,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

func writePDF(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("resume bytes"), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// --- tests ---

func TestScannedPDFRejectedWithoutLLMCalls(t *testing.T) {
	dir := t.TempDir()
	b := bus.New()
	labels := collectLabels(b)

	extractor := &mockExtractor{textFn: func(string) (string, error) {
		return "", fmt.Errorf("8 meaningful characters, need 100: %w", extract.ErrInsufficientText)
	}}
	decider := &mockDecider{classifyFn: func(context.Context, string, string) (classifier.Decision, error) {
		return classifier.Decision{Label: manifest.StatusPassed}, nil
	}}

	s := startTestService(t, dir, b, extractor, decider, nil)
	writePDF(t, dir, "scan.pdf")

	labels.await(t, "scan.pdf", manifest.StatusRejected)

	if n := decider.calls.Load(); n != 0 {
		t.Errorf("decider called %d times, want 0", n)
	}

	all, err := s.store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if all["scan.pdf"] != manifest.StatusRejected {
		t.Errorf("label = %q, want rejected", all["scan.pdf"])
	}
}

func TestHappyPathElite(t *testing.T) {
	dir := t.TempDir()
	b := bus.New()
	labels := collectLabels(b)

	var gotCondition string
	extractor := &mockExtractor{textFn: func(string) (string, error) {
		return "a decade of distributed systems work", nil
	}}
	decider := &mockDecider{classifyFn: func(_ context.Context, condition, _ string) (classifier.Decision, error) {
		gotCondition = condition
		return classifier.Decision{Label: manifest.StatusElite, Reason: "exceptional", CandidateName: "Sam Brown"}, nil
	}}

	startTestService(t, dir, b, extractor, decider, nil)
	writePDF(t, dir, "star.pdf")

	labels.await(t, "star.pdf", manifest.StatusElite)

	if gotCondition != "senior Go engineer" {
		t.Errorf("condition snapshot = %q", gotCondition)
	}
}

func TestRejectionArchivesIdentifiedApplication(t *testing.T) {
	dir := t.TempDir()
	b := bus.New()
	labels := collectLabels(b)

	appID := uuid.MustParse("8b5a2f6e-4c3d-4e2a-9f1b-0c7d6e5a4b3c")
	name := fmt.Sprintf("Jane Doe__%s__%s.pdf", uuid.MustParse("1f2e3d4c-5b6a-4978-8695-a4b3c2d1e0f9"), appID)

	extractor := &mockExtractor{textFn: func(string) (string, error) {
		return "junior analyst, two years of spreadsheets", nil
	}}
	decider := &mockDecider{classifyFn: func(context.Context, string, string) (classifier.Decision, error) {
		return classifier.Decision{Label: manifest.StatusRejected, Reason: "no Go experience"}, nil
	}}
	mover := &mockMover{}

	startTestService(t, dir, b, extractor, decider, mover)
	writePDF(t, dir, name)

	labels.await(t, name, manifest.StatusRejected)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(mover.archivedIDs()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	ids := mover.archivedIDs()
	if len(ids) != 1 || ids[0] != appID {
		t.Errorf("archived = %v, want [%s]", ids, appID)
	}
}

func TestInitialScanSuppressesAddedEvents(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, dir, "preexisting.pdf")

	b := bus.New()
	labels := collectLabels(b)

	var added []string
	var addedMu sync.Mutex
	b.On(bus.KindAdded, func(e bus.Event) {
		addedMu.Lock()
		added = append(added, e.Filename)
		addedMu.Unlock()
	})

	extractor := &mockExtractor{textFn: func(string) (string, error) {
		return "plenty of relevant experience here", nil
	}}
	decider := &mockDecider{classifyFn: func(context.Context, string, string) (classifier.Decision, error) {
		return classifier.Decision{Label: manifest.StatusPassed}, nil
	}}

	startTestService(t, dir, b, extractor, decider, nil)

	labels.await(t, "preexisting.pdf", manifest.StatusPassed)

	writePDF(t, dir, "fresh.pdf")
	labels.await(t, "fresh.pdf", manifest.StatusPassed)

	addedMu.Lock()
	defer addedMu.Unlock()
	for _, name := range added {
		if name == "preexisting.pdf" {
			t.Error("initial-scan file published an added event")
		}
	}
	found := false
	for _, name := range added {
		if name == "fresh.pdf" {
			found = true
		}
	}
	if !found {
		t.Error("post-start file did not publish an added event")
	}
}

func TestSetConditionBoundsLength(t *testing.T) {
	s := New(openTestStore(t), bus.New(), nil, nil, nil, Options{Dir: t.TempDir()})

	if err := s.SetCondition(strings.Repeat("x", MaxConditionChars)); err != nil {
		t.Errorf("SetCondition at limit: %v", err)
	}
	if err := s.SetCondition(strings.Repeat("x", MaxConditionChars+1)); err != ErrConditionTooLong {
		t.Errorf("SetCondition over limit = %v, want ErrConditionTooLong", err)
	}
}

func TestReviewPublishesAndRequiresEntry(t *testing.T) {
	b := bus.New()
	labels := collectLabels(b)
	s := New(openTestStore(t), b, nil, nil, nil, Options{Dir: t.TempDir()})

	if err := s.Review("ghost.pdf", "great"); err != manifest.ErrNotFound {
		t.Errorf("Review(ghost) = %v, want ErrNotFound", err)
	}

	if _, err := s.store.AppendIfMissing("real.pdf"); err != nil {
		t.Fatalf("AppendIfMissing: %v", err)
	}
	if err := s.Review("real.pdf", "strong hire"); err != nil {
		t.Fatalf("Review: %v", err)
	}
	labels.await(t, "real.pdf", manifest.Reviewed("strong hire"))
}
