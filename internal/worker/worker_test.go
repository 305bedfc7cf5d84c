package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/agent"
)

// --- stubs ---

type stubCatalogSource struct {
	mu    sync.Mutex
	cols  []agent.Collection
	err   error
	calls int
}

func (s *stubCatalogSource) ListCollections(context.Context) ([]agent.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.cols, nil
}

func (s *stubCatalogSource) set(cols []agent.Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols, s.err = cols, err
}

func (s *stubCatalogSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- tests ---

func TestCatalogRefresher_RefreshSwapsSnapshot(t *testing.T) {
	source := &stubCatalogSource{cols: []agent.Collection{
		{Name: "docs", Description: "Team documentation"},
		{Name: "wiki"},
	}}
	r := NewCatalogRefresher(source, time.Minute, testLogger())

	assert.Nil(t, r.Collections(), "snapshot must be empty before the first refresh")

	require.NoError(t, r.Refresh(context.Background()))
	got := r.Collections()
	require.Len(t, got, 2)
	assert.Equal(t, "docs", got[0].Name)
}

func TestCatalogRefresher_FailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	source := &stubCatalogSource{cols: []agent.Collection{{Name: "docs"}}}
	r := NewCatalogRefresher(source, time.Minute, testLogger())

	require.NoError(t, r.Refresh(context.Background()))
	source.set(nil, errors.New("connection refused"))

	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list collections")
	require.Len(t, r.Collections(), 1, "previous snapshot must survive a failed refresh")
}

func TestCatalogRefresher_ListCollectionsServesSnapshot(t *testing.T) {
	source := &stubCatalogSource{cols: []agent.Collection{{Name: "docs"}}}
	r := NewCatalogRefresher(source, time.Minute, testLogger())
	require.NoError(t, r.Refresh(context.Background()))

	before := source.callCount()
	got, err := r.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, before, source.callCount(), "snapshot reads must not hit the source")
}

func TestCatalogRefresher_StartRefreshesPeriodically(t *testing.T) {
	source := &stubCatalogSource{cols: []agent.Collection{{Name: "docs"}}}
	r := NewCatalogRefresher(source, 10*time.Millisecond, testLogger())

	r.Start(context.Background())
	defer r.Stop()

	assert.GreaterOrEqual(t, source.callCount(), 1, "Start must refresh synchronously")
	require.Eventually(t, func() bool {
		return source.callCount() >= 3
	}, time.Second, 5*time.Millisecond, "background loop must keep refreshing")
}

func TestCatalogRefresher_StopsOnContextCancel(t *testing.T) {
	source := &stubCatalogSource{}
	r := NewCatalogRefresher(source, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	select {
	case <-r.doneChan:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop on context cancel")
	}
}

func TestCatalogRefresher_JitterStaysWithinBounds(t *testing.T) {
	r := NewCatalogRefresher(&stubCatalogSource{}, 100*time.Millisecond, testLogger())

	for range 100 {
		d := r.jittered()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestCatalogRefresher_DefaultsInterval(t *testing.T) {
	r := NewCatalogRefresher(&stubCatalogSource{}, 0, testLogger())
	assert.Equal(t, defaultRefreshInterval, r.interval)
}
