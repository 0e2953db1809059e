package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockKeyFinder struct {
	mock.Mock
}

func (m *mockKeyFinder) FindAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	args := m.Called(ctx, keyHash)
	if k := args.Get(0); k != nil {
		return k.(*APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCachedKeyFinder_HitsCache(t *testing.T) {
	finder := new(mockKeyFinder)
	key := &APIKey{ID: "k1", UserID: "u1", KeyHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}
	finder.On("FindAPIKeyByHash", mock.Anything, "h1").Return(key, nil).Once()

	cache := NewCachedKeyFinder(finder, 8, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := cache.FindAPIKeyByHash(context.Background(), "h1")
		require.NoError(t, err)
		assert.Equal(t, "k1", got.ID)
	}
	assert.Equal(t, 1, cache.Len())
	finder.AssertExpectations(t)
}

func TestCachedKeyFinder_DoesNotCacheMisses(t *testing.T) {
	finder := new(mockKeyFinder)
	finder.On("FindAPIKeyByHash", mock.Anything, "missing").Return(nil, ErrNotFound).Twice()

	cache := NewCachedKeyFinder(finder, 8, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cache.FindAPIKeyByHash(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 0, cache.Len())
	finder.AssertExpectations(t)
}

func TestCachedKeyFinder_ReturnsCopies(t *testing.T) {
	finder := new(mockKeyFinder)
	finder.On("FindAPIKeyByHash", mock.Anything, "h1").Return(&APIKey{ID: "k1"}, nil).Once()

	cache := NewCachedKeyFinder(finder, 8, time.Minute)
	first, err := cache.FindAPIKeyByHash(context.Background(), "h1")
	require.NoError(t, err)
	first.ID = "mutated"

	second, err := cache.FindAPIKeyByHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "k1", second.ID)
}

type slowFinder struct {
	calls   int32
	release chan struct{}
}

func (s *slowFinder) FindAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	atomic.AddInt32(&s.calls, 1)
	<-s.release
	if keyHash == "bad" {
		return nil, errors.New("boom")
	}
	return &APIKey{ID: "k-" + keyHash}, nil
}

func TestCachedKeyFinder_CollapsesConcurrentLookups(t *testing.T) {
	finder := &slowFinder{release: make(chan struct{})}
	cache := NewCachedKeyFinder(finder, 8, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.FindAPIKeyByHash(context.Background(), "h1")
		}()
	}

	// let the goroutines pile up on the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(finder.release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&finder.calls), int32(2))
}
