// Package bus is the in-process publish/subscribe fan-out for pipeline
// state transitions.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/cvsift/internal/manifest"
)

// Kind names an event stream.
type Kind string

const (
	// KindAdded fires when a new file enters the pipeline.
	KindAdded Kind = "added"
	// KindLabel fires when a manifest label changes.
	KindLabel Kind = "label"
	// KindKeepAlive fires periodically, independent of domain events, so
	// long-lived subscribers can detect half-open connections.
	KindKeepAlive Kind = "keepalive"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Kind         Kind            `json:"-"`
	Filename     string          `json:"filename,omitempty"`
	RelativePath string          `json:"relativePath,omitempty"`
	Label        manifest.Status `json:"label,omitempty"`
	TS           time.Time       `json:"ts"`
}

// Bus delivers events synchronously to each subscriber, best effort: a
// panicking subscriber is isolated and does not affect others or the
// publisher.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Kind]map[int]func(Event)
	logger *slog.Logger
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		subs:   make(map[Kind]map[int]func(Event)),
		logger: slog.Default(),
	}
}

// On registers fn for events of the given kind and returns an unsubscribe
// handle. Unsubscribing twice is harmless.
func (b *Bus) On(kind Kind, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]func(Event))
	}
	b.subs[kind][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[kind], id)
	}
}

// Publish delivers e to every subscriber of e.Kind. A zero TS is stamped
// with the current time.
func (b *Bus) Publish(e Event) {
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}

	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs[e.Kind]))
	for _, fn := range b.subs[e.Kind] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.deliver(fn, e)
	}
}

func (b *Bus) deliver(fn func(Event), e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event subscriber panicked", "kind", e.Kind, "panic", r)
		}
	}()
	fn(e)
}

// KeepAlive publishes KindKeepAlive events every interval until ctx is
// cancelled. Run it in a goroutine alongside the push-update consumers.
func (b *Bus) KeepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Publish(Event{Kind: KindKeepAlive})
		}
	}
}
