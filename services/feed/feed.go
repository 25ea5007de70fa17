package feed

import (
	"context"
	"log"
	"sync"
	"time"

	"wander-stories-backend/models/post"
)

// Loader reads the newest n posts from whatever store backs the feed.
type Loader func(ctx context.Context, n int) ([]post.Post, error)

// Sync keeps a live ordered view of the most recent posts and delivers
// the full snapshot to every subscriber whenever it changes. Viewers
// always re-render from a complete snapshot, never a diff, so delivery
// only has to be at-least-once.
type Sync interface {
	Subscribe(ctx context.Context) (<-chan []post.Post, func())
	Invalidate()
	Run(ctx context.Context)
}

// Hub implements Sync. With an interval of zero it is invalidation
// driven: a publish or delete kicks a reload. With an interval it polls
// the loader and broadcasts only when the snapshot changed.
type Hub struct {
	load     Loader
	size     int
	interval time.Duration
	kick     chan struct{}

	mu     sync.Mutex
	subs   map[chan []post.Post]struct{}
	last   []post.Post
	loaded bool
}

func NewPushHub(load Loader, size int) *Hub {
	return newHub(load, size, 0)
}

func NewPollHub(load Loader, size int, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return newHub(load, size, interval)
}

func newHub(load Loader, size int, interval time.Duration) *Hub {
	if size <= 0 {
		size = 50
	}
	return &Hub{
		load:     load,
		size:     size,
		interval: interval,
		kick:     make(chan struct{}, 1),
		subs:     make(map[chan []post.Post]struct{}),
	}
}

// Invalidate requests a reload. Non-blocking; coalesces bursts.
func (h *Hub) Invalidate() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// Run drives the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.refresh(ctx)

	var tick <-chan time.Time
	if h.interval > 0 {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.kick:
			h.refresh(ctx)
		case <-tick:
			h.refresh(ctx)
		}
	}
}

func (h *Hub) refresh(ctx context.Context) {
	snap, err := h.load(ctx, h.size)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("feed reload: %v", err)
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded && equalSnapshots(h.last, snap) {
		return
	}
	h.last = snap
	h.loaded = true
	for ch := range h.subs {
		deliver(ch, snap)
	}
}

// Subscribe registers a viewer. The current snapshot is delivered
// immediately so a fresh viewer does not wait for the next change. The
// returned cancel releases the subscription without blocking other
// subscribers; it is safe to call more than once.
func (h *Hub) Subscribe(ctx context.Context) (<-chan []post.Post, func()) {
	ch := make(chan []post.Post, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.loaded {
		deliver(ch, h.last)
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel
}

// deliver replaces any pending snapshot instead of blocking: a slow
// viewer skips intermediate states and lands on the newest complete
// one, which is equivalent for full-snapshot rendering.
func deliver(ch chan []post.Post, snap []post.Post) {
	select {
	case ch <- snap:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func equalSnapshots(a, b []post.Post) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Likes != b[i].Likes || a[i].Flagged != b[i].Flagged {
			return false
		}
	}
	return true
}
