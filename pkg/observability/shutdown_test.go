package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShutdownManager_Defaults(t *testing.T) {
	sm := NewShutdownManager(nil, nil, 0)
	assert.Equal(t, DefaultShutdownTimeout, sm.timeout)
	assert.NotNil(t, sm.logger)
}

func TestShutdown_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	sm.Register("database", record("database"))
	sm.Register("redis", record("redis"))
	sm.Register("otel", record("otel"))

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, []string{"otel", "redis", "database"}, order)
}

func TestShutdown_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)
	boom := errors.New("boom")

	ran := false
	sm.Register("ok", func(context.Context) error { ran = true; return nil })
	sm.Register("bad", func(context.Context) error { return boom })

	err := sm.Shutdown()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.True(t, ran, "a failing step must not stop later steps")
}

func TestShutdown_RunsOnce(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)

	calls := 0
	sm.Register("count", func(context.Context) error { calls++; return nil })

	require.NoError(t, sm.Shutdown())
	require.NoError(t, sm.Shutdown())
	assert.Equal(t, 1, calls)
}

func TestShutdown_DrainsServer(t *testing.T) {
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.Start()
	defer srv.Close()

	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), srv.Config, time.Second)
	require.NoError(t, sm.Shutdown())

	_, err := http.Get(srv.URL)
	assert.Error(t, err, "server must stop accepting connections")
}

func TestShutdown_StepSeesDeadline(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, 50*time.Millisecond)

	sm.Register("slow", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, sm.Shutdown(), context.DeadlineExceeded)
}

func TestWaitForShutdown_ContextCancel(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)
	done := false
	sm.Register("flag", func(context.Context) error { done = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForShutdown(ctx))
	assert.True(t, done)
}
