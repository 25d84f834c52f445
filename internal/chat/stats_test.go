package chat

import (
	"context"
	"errors"
	"testing"

	"campusiq-chat/internal/ragapi"
	"campusiq-chat/internal/session"
)

type fakeStatsFetcher struct {
	stats ragapi.Stats
	err   error
}

func (f *fakeStatsFetcher) Stats(ctx context.Context) (ragapi.Stats, error) {
	return f.stats, f.err
}

func TestStatsRefreshSuccess(t *testing.T) {
	c := NewStatsController(&fakeStatsFetcher{stats: ragapi.Stats{TotalChunks: 42, ModelName: "all-MiniLM-L6-v2"}})
	c.logf = discardLog
	if c.State() != StatsLoading {
		t.Fatalf("expected initial loading state")
	}

	fetch := c.Refresh()
	if c.State() != StatsLoading {
		t.Fatalf("expected loading during refresh")
	}
	c.Complete(fetch(context.Background()))

	if c.State() != StatsLoaded {
		t.Fatalf("expected loaded, got %v", c.State())
	}
	stats, ok := c.Snapshot()
	if !ok || stats.TotalChunks != 42 {
		t.Fatalf("unexpected snapshot: ok=%v stats=%+v", ok, stats)
	}
}

func TestStatsRefreshFailure(t *testing.T) {
	c := NewStatsController(&fakeStatsFetcher{err: errors.New("connection refused")})
	c.logf = discardLog

	fetch := c.Refresh()
	c.Complete(fetch(context.Background()))

	if c.State() != StatsFailed {
		t.Fatalf("expected failed, got %v", c.State())
	}
	if _, ok := c.Snapshot(); ok {
		t.Fatalf("failed controller must expose no snapshot")
	}
}

func TestStatsStaleRefreshDiscarded(t *testing.T) {
	f := &fakeStatsFetcher{stats: ragapi.Stats{TotalChunks: 1}}
	c := NewStatsController(f)
	c.logf = discardLog

	first := c.Refresh()
	firstOut := first(context.Background())

	f.stats = ragapi.Stats{TotalChunks: 2}
	second := c.Refresh()
	c.Complete(second(context.Background()))

	// The earlier fetch resolving late must not clobber the newer snapshot.
	c.Complete(firstOut)
	stats, ok := c.Snapshot()
	if !ok || stats.TotalChunks != 2 {
		t.Fatalf("stale refresh overwrote snapshot: ok=%v stats=%+v", ok, stats)
	}
}

func TestStatsFailureDoesNotTouchConversation(t *testing.T) {
	store := session.NewStore()
	o := NewOrchestrator(store, &fakeQuerier{}, 5, WithLogger(discardLog))
	resolve, _ := o.Submit("q1")
	o.Complete(resolve(context.Background()))

	c := NewStatsController(&fakeStatsFetcher{err: errors.New("down")})
	c.logf = discardLog
	c.Complete(c.Refresh()(context.Background()))

	if store.Len() != 2 {
		t.Fatalf("stats failure changed session store: len=%d", store.Len())
	}
	if o.Pending() {
		t.Fatalf("stats failure changed orchestrator state")
	}
}
