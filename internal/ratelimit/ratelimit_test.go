package ratelimit

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/apperr"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryStore_FixedWindow(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute).WithClock(clock.Now)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := store.Hit(ctx, "chat:1.2.3.4", 5, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d should be admitted", i)
		assert.Equal(t, i, d.Count)
	}

	d, err := store.Hit(ctx, "chat:1.2.3.4", 5, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "6th hit inside window must be rejected")
	assert.Equal(t, 5, d.Count, "rejection must not change the count")

	// Exactly at resetAt the window is still live.
	clock.Advance(5 * time.Minute)
	d, _ = store.Hit(ctx, "chat:1.2.3.4", 5, 5*time.Minute)
	assert.False(t, d.Allowed)

	clock.Advance(time.Millisecond)
	d, err = store.Hit(ctx, "chat:1.2.3.4", 5, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count, "a new window starts with a fresh count")
}

func TestMemoryStore_ConcurrentNoOverAdmission(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	// Bring the client to count == max-1.
	for i := 0; i < 4; i++ {
		_, err := store.Hit(ctx, "k", 5, time.Minute)
		require.NoError(t, err)
	}

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := store.Hit(ctx, "k", 5, time.Minute)
			if err == nil && d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestLimiter_PoliciesDoNotInterfere(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	chat := New(store, ChatPolicy, nil)
	note := New(store, NotePolicy, nil)
	ctx := context.Background()

	require.NoError(t, note.Admit(ctx, "ip"))
	err := note.Admit(ctx, "ip")
	rl, ok := apperr.IsRateLimited(err)
	require.True(t, ok, "second note must be rate limited, got %v", err)
	assert.Equal(t, 600, rl.RetryAfterSeconds())

	for i := 0; i < 5; i++ {
		assert.NoError(t, chat.Admit(ctx, "ip"), "chat hit %d", i+1)
	}
	rl, ok = apperr.IsRateLimited(chat.Admit(ctx, "ip"))
	require.True(t, ok)
	assert.Equal(t, 300, rl.RetryAfterSeconds())
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l := New(NewMemoryStore(time.Minute), NotePolicy, nil)
	ctx := context.Background()
	assert.NoError(t, l.Admit(ctx, "a"))
	assert.NoError(t, l.Admit(ctx, "b"))
	assert.Error(t, l.Admit(ctx, "a"))
}

type brokenStore struct{}

func (brokenStore) Hit(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}

func TestLimiter_StoreFailureAdmits(t *testing.T) {
	l := New(brokenStore{}, ChatPolicy, nil)
	assert.NoError(t, l.Admit(context.Background(), "ip"))
}

func TestPolicy_Hint(t *testing.T) {
	assert.Equal(t, 5*time.Minute, ChatPolicy.Hint())
	p := Policy{Name: "x", Max: 1, Window: time.Minute, RetryAfter: 90 * time.Second}
	assert.Equal(t, 90*time.Second, p.Hint())
}

func TestRedisStore_FixedWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	store := NewRedisStore(client, "test-"+t.Name())
	key := Key("note", time.Now().Format(time.RFC3339Nano))
	t.Cleanup(func() { client.Del(ctx, store.key(key)) })

	d, err := store.Hit(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = store.Hit(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}
