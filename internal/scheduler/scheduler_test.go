package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wx-briefing/internal/store"
	"github.com/i474232898/wx-briefing/internal/weather"
)

type stubBuilder struct {
	mu    sync.Mutex
	calls int
}

func (b *stubBuilder) Worldviews(context.Context) (all, severe weather.Worldview) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	now := time.Now().UTC()
	all = weather.Worldview{GeneratedAt: now}
	severe = weather.Worldview{GeneratedAt: now, Meta: weather.WorldviewMeta{SevereOnly: true}}
	return all, severe
}

func (b *stubBuilder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestRefreshStoresBothVariants(t *testing.T) {
	b := &stubBuilder{}
	st := store.NewMemoryStore(10, 0)
	s := New(b, st, time.Minute, nil)

	s.Refresh(t.Context())

	all, err := st.GetLatest(store.KeyAll)
	require.NoError(t, err)
	assert.False(t, all.Meta.SevereOnly)

	severe, err := st.GetLatest(store.KeySevere)
	require.NoError(t, err)
	assert.True(t, severe.Meta.SevereOnly)
	assert.Equal(t, 1, b.count(), "both variants come from one build")
}

func TestStartRunsImmediately(t *testing.T) {
	b := &stubBuilder{}
	st := store.NewMemoryStore(10, 0)
	s := New(b, st, 0, nil)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return b.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
