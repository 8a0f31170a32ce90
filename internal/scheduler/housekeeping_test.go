package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/remind"
)

func TestSweepRoutesExpiredUsers(t *testing.T) {
	t.Parallel()

	store := newStore(activeUser(1, "Europe/London"), activeUser(2, "America/Toronto"))
	sender := &fakeSender{}
	disp := &fakeDispatcher{}
	s := newTestService(store, sender, disp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Reschedule(ctx, 1))
	require.NoError(t, s.Reschedule(ctx, 2))
	s.Start(ctx)
	defer s.Stop()

	// User 2's access lapses between firings; the sweep notices.
	store.mu.Lock()
	store.users[2] = expiredUser(2, "America/Toronto")
	store.mu.Unlock()

	s.sweep()

	assert.Equal(t, []int64{2}, disp.denied)
	assert.Empty(t, sender.sends)
}

func TestSweepDropsDeletedUsers(t *testing.T) {
	t.Parallel()

	store := newStore(activeUser(1, "Europe/London"))
	s := newTestService(store, &fakeSender{}, &fakeDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Reschedule(ctx, 1))
	s.Start(ctx)
	defer s.Stop()

	store.mu.Lock()
	delete(store.users, 1)
	store.mu.Unlock()

	s.sweep()
	assert.Equal(t, 0, s.Count(1))
}

func TestFiredIgnoresStaleGeneration(t *testing.T) {
	t.Parallel()

	store := newStore(activeUser(1, "Europe/London"))
	sender := &fakeSender{}
	s := newTestService(store, sender, &fakeDispatcher{})
	ctx := context.Background()

	require.NoError(t, s.Reschedule(ctx, 1))
	key := triggerKey{user: 1, kind: remind.Morning}
	s.mu.Lock()
	staleGen := s.triggers[key].gen
	s.mu.Unlock()

	// Replacing the set bumps the generation; the old timer's callback is a
	// no-op even though the key still exists.
	require.NoError(t, s.Reschedule(ctx, 1))
	s.fired(key, staleGen)
	assert.Empty(t, sender.sends)

	s.mu.Lock()
	liveGen := s.triggers[key].gen
	s.mu.Unlock()
	s.fired(key, liveGen)
	assert.Equal(t, []int64{1}, sender.sends)
}

func TestFiredAfterCancelIsNoop(t *testing.T) {
	t.Parallel()

	store := newStore(activeUser(1, "Europe/London"))
	sender := &fakeSender{}
	s := newTestService(store, sender, &fakeDispatcher{})
	ctx := context.Background()

	require.NoError(t, s.Reschedule(ctx, 1))
	key := triggerKey{user: 1, kind: remind.Evening}
	s.mu.Lock()
	gen := s.triggers[key].gen
	s.mu.Unlock()

	s.CancelAll(1)
	s.fired(key, gen)
	assert.Empty(t, sender.sends)
}
