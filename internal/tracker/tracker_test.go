package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/feed"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/store"
)

type fakeEmoteProvider struct {
	mu      sync.Mutex
	fetches int
	err     error
}

func (f *fakeEmoteProvider) ChannelEmotes(_ context.Context, _ string) ([]domain.EmoteDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return []domain.EmoteDescriptor{{Name: "pog", ID: "emote-1"}}, nil
}

func (f *fakeEmoteProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeIdentity struct{}

func (fakeIdentity) Lookup(_ context.Context, _ string) (domain.UserInfo, bool) {
	return domain.UserInfo{}, false
}

type fakePublisher struct{}

func (fakePublisher) Publish(domain.Update) {}

type fakeAdapter struct {
	started atomic.Int32
}

func (f *fakeAdapter) Run(ctx context.Context) {
	f.started.Add(1)
	<-ctx.Done()
}

func testSupervisor(t *testing.T, emotes *fakeEmoteProvider) (*Supervisor, *atomic.Int32) {
	t.Helper()

	st := store.New(filepath.Join(t.TempDir(), "data.json"), clockwork.NewFakeClock())
	sup := NewSupervisor(st, emotes, fakeIdentity{}, fakePublisher{}, 5*time.Second, clockwork.NewFakeClock())
	t.Cleanup(sup.StopAll)

	var adapters atomic.Int32
	sup.newAdapter = func(_ string, _ feed.Handler) runner {
		adapters.Add(1)
		return &fakeAdapter{}
	}

	return sup, &adapters
}

func TestEnsureTracking_Idempotent(t *testing.T) {
	emotes := &fakeEmoteProvider{}
	sup, adapters := testSupervisor(t, emotes)

	first, err := sup.EnsureTracking(context.Background(), "TestChannel")
	require.NoError(t, err)

	second, err := sup.EnsureTracking(context.Background(), "testchannel")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, emotes.count())
	assert.Equal(t, int32(1), adapters.Load())
	assert.True(t, sup.IsTracking("testchannel"))
}

func TestEnsureTracking_ConcurrentCallsShareOneStart(t *testing.T) {
	emotes := &fakeEmoteProvider{}
	sup, adapters := testSupervisor(t, emotes)

	results := make([]*store.Channel, 10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch, err := sup.EnsureTracking(context.Background(), "testchannel")
			assert.NoError(t, err)
			results[i] = ch
		}(i)
	}
	wg.Wait()

	for _, ch := range results {
		assert.Same(t, results[0], ch)
	}
	assert.Equal(t, int32(1), adapters.Load())
}

func TestEnsureTracking_FetchErrorLeavesNothingBehind(t *testing.T) {
	emotes := &fakeEmoteProvider{err: errors.New("7tv down")}
	sup, adapters := testSupervisor(t, emotes)

	_, err := sup.EnsureTracking(context.Background(), "testchannel")
	require.Error(t, err)
	assert.False(t, sup.IsTracking("testchannel"))
	assert.Equal(t, int32(0), adapters.Load())

	// a later call retries the fetch and succeeds
	emotes.mu.Lock()
	emotes.err = nil
	emotes.mu.Unlock()

	_, err = sup.EnsureTracking(context.Background(), "testchannel")
	require.NoError(t, err)
	assert.True(t, sup.IsTracking("testchannel"))
}

func TestEnsureTracking_DistinctChannels(t *testing.T) {
	emotes := &fakeEmoteProvider{}
	sup, adapters := testSupervisor(t, emotes)

	a, err := sup.EnsureTracking(context.Background(), "alpha")
	require.NoError(t, err)
	b, err := sup.EnsureTracking(context.Background(), "beta")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, emotes.count())
	assert.Equal(t, int32(2), adapters.Load())
}
