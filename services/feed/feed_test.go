package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wander-stories-backend/models/post"
)

// fixtureLoader serves whatever snapshot the test last stored.
type fixtureLoader struct {
	mu    sync.Mutex
	posts []post.Post
}

func (f *fixtureLoader) set(posts []post.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = posts
}

func (f *fixtureLoader) load(_ context.Context, n int) ([]post.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.posts) > n {
		return f.posts[:n], nil
	}
	return f.posts, nil
}

func fixture(ids ...uint) []post.Post {
	out := make([]post.Post, 0, len(ids))
	for _, id := range ids {
		out = append(out, post.Post{ID: id, Title: "t", Story: "s", AuthorID: "u1"})
	}
	return out
}

func receive(t *testing.T, ch <-chan []post.Post) []post.Post {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestPushHubDeliversOnInvalidate(t *testing.T) {
	loader := &fixtureLoader{}
	loader.set(fixture(3, 2, 1))

	hub := NewPushHub(loader.load, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ch, unsubscribe := hub.Subscribe(nil)
	defer unsubscribe()

	snap := receive(t, ch)
	require.Len(t, snap, 3)
	assert.Equal(t, uint(3), snap[0].ID)

	loader.set(fixture(4, 3, 2, 1))
	hub.Invalidate()

	snap = receive(t, ch)
	require.Len(t, snap, 4)
	assert.Equal(t, uint(4), snap[0].ID)
}

func TestHubSkipsUnchangedSnapshots(t *testing.T) {
	loader := &fixtureLoader{}
	loader.set(fixture(1))

	hub := NewPushHub(loader.load, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ch, unsubscribe := hub.Subscribe(nil)
	defer unsubscribe()
	receive(t, ch)

	// Same underlying data: invalidation must not re-deliver.
	hub.Invalidate()
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot delivery: %v", snap)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSnapshotRenderingIsIdempotent(t *testing.T) {
	// Feeding the same ordered set twice yields an identical rendered
	// state: the snapshot fully replaces, never appends.
	loader := &fixtureLoader{}
	loader.set(fixture(2, 1))

	hub := NewPushHub(loader.load, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ch, unsubscribe := hub.Subscribe(nil)
	defer unsubscribe()

	first := receive(t, ch)

	loader.set(fixture(3, 2, 1))
	hub.Invalidate()
	second := receive(t, ch)

	assert.Len(t, first, 2)
	assert.Len(t, second, 3)
	assert.Equal(t, []uint{3, 2, 1}, []uint{second[0].ID, second[1].ID, second[2].ID})
}

func TestSlowSubscriberGetsLatestSnapshot(t *testing.T) {
	loader := &fixtureLoader{}
	loader.set(fixture(1))

	hub := NewPushHub(loader.load, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ch, unsubscribe := hub.Subscribe(nil)
	defer unsubscribe()

	// Never drained: two further updates land while the subscriber
	// sleeps. It must see the newest state, not the backlog.
	waitForLoad(t, hub)
	loader.set(fixture(2, 1))
	hub.Invalidate()
	waitForSnapshotLen(t, hub, 2)
	loader.set(fixture(3, 2, 1))
	hub.Invalidate()
	waitForSnapshotLen(t, hub, 3)

	snap := receive(t, ch)
	for len(snap) != 3 {
		snap = receive(t, ch)
	}
	assert.Equal(t, uint(3), snap[0].ID)
}

func TestUnsubscribeDoesNotBlockOthers(t *testing.T) {
	loader := &fixtureLoader{}
	loader.set(fixture(1))

	hub := NewPushHub(loader.load, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	first, cancelFirst := hub.Subscribe(nil)
	second, cancelSecond := hub.Subscribe(nil)
	defer cancelSecond()

	receive(t, first)
	receive(t, second)

	cancelFirst()
	cancelFirst() // safe to call twice

	loader.set(fixture(2, 1))
	hub.Invalidate()

	snap := receive(t, second)
	assert.Len(t, snap, 2)

	// The cancelled channel is closed, not left dangling.
	_, open := <-first
	assert.False(t, open)
}

func TestSubscriberContextTeardown(t *testing.T) {
	loader := &fixtureLoader{}
	loader.set(fixture(1))

	hub := NewPushHub(loader.load, 50)
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go hub.Run(runCtx)

	subCtx, cancelSub := context.WithCancel(context.Background())
	ch, cleanup := hub.Subscribe(subCtx)
	defer cleanup()

	receive(t, ch)
	cancelSub()

	select {
	case _, open := <-ch:
		if open {
			// A snapshot may already be buffered; the close follows.
			_, open = <-ch
			assert.False(t, open)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released after context cancel")
	}
}

func TestPollHubPicksUpChanges(t *testing.T) {
	loader := &fixtureLoader{}
	loader.set(fixture(1))

	hub := NewPollHub(loader.load, 50, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ch, unsubscribe := hub.Subscribe(nil)
	defer unsubscribe()

	snap := receive(t, ch)
	assert.Len(t, snap, 1)

	// No Invalidate call: the poll loop alone must observe the change.
	loader.set(fixture(2, 1))

	snap = receive(t, ch)
	assert.Len(t, snap, 2)
}

func TestHubHonorsSizeLimit(t *testing.T) {
	loader := &fixtureLoader{}
	loader.set(fixture(5, 4, 3, 2, 1))

	hub := NewPushHub(loader.load, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ch, unsubscribe := hub.Subscribe(nil)
	defer unsubscribe()

	snap := receive(t, ch)
	require.Len(t, snap, 2)
	assert.Equal(t, uint(5), snap[0].ID)
}

func waitForLoad(t *testing.T, hub *Hub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		loaded := hub.loaded
		hub.mu.Unlock()
		if loaded {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("hub never loaded")
}

func waitForSnapshotLen(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		got := len(hub.last)
		hub.mu.Unlock()
		if got == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached snapshot of %d posts", n)
}
