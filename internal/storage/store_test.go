package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/access"
	"remindbot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// sec truncates to whole seconds; timestamps are persisted as unix seconds.
func sec(t time.Time) time.Time { return t.Truncate(time.Second).UTC() }

func TestEnsureAndGetUser(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetUser(ctx, 1)
	assert.ErrorIs(t, err, access.ErrNotFound)

	require.NoError(t, s.EnsureUser(ctx, 1))
	require.NoError(t, s.EnsureUser(ctx, 1)) // idempotent

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Empty(t, u.Timezone)
	assert.Nil(t, u.TrialStart)
	assert.Nil(t, u.TrialEnd)
	assert.Nil(t, u.SubscribedUntil)
	assert.False(t, u.ExpiredNotified)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestSetTimezone(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	// Creates the row on demand.
	require.NoError(t, s.SetTimezone(ctx, 2, "Europe/London"))
	u, err := s.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", u.Timezone)

	require.NoError(t, s.SetTimezone(ctx, 2, "America/Toronto"))
	u, err = s.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "America/Toronto", u.Timezone)

	// Empty clears back to NULL.
	require.NoError(t, s.SetTimezone(ctx, 2, ""))
	u, err = s.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.False(t, u.HasTimezone())
}

func TestGrantTrialOnlyOnce(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, 3))

	start := sec(time.Now())
	end := start.Add(72 * time.Hour)

	granted, err := s.GrantTrial(ctx, 3, start, end)
	require.NoError(t, err)
	assert.True(t, granted)

	// Second attempt with a different window changes nothing.
	granted, err = s.GrantTrial(ctx, 3, start.Add(time.Hour), end.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, granted)

	u, err := s.GetUser(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, u.TrialStart)
	require.NotNil(t, u.TrialEnd)
	assert.Equal(t, start, *u.TrialStart)
	assert.Equal(t, end, *u.TrialEnd)
}

func TestExtendSubscriptionStacks(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, 4))

	now := sec(time.Now())

	until, err := s.ExtendSubscription(ctx, 4, now, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), until)

	// Extending later stacks on the remaining time.
	later := now.Add(24 * time.Hour)
	until, err = s.ExtendSubscription(ctx, 4, later, 5*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(35*24*time.Hour), until)

	// After a lapse, the new grant starts from now.
	muchLater := now.Add(100 * 24 * time.Hour)
	until, err = s.ExtendSubscription(ctx, 4, muchLater, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, muchLater.Add(24*time.Hour), until)
}

func TestExtendSubscriptionUnknownUser(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.ExtendSubscription(context.Background(), 404, sec(time.Now()), time.Hour)
	assert.ErrorIs(t, err, access.ErrNotFound)
}

func TestRevokeSubscriptionLeavesTrialFields(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, 5))

	now := sec(time.Now())
	_, err := s.GrantTrial(ctx, 5, now, now.Add(72*time.Hour))
	require.NoError(t, err)
	_, err = s.ExtendSubscription(ctx, 5, now, 30*24*time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.RevokeSubscription(ctx, 5))

	u, err := s.GetUser(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, u.SubscribedUntil)
	assert.NotNil(t, u.TrialStart)
	assert.NotNil(t, u.TrialEnd)
}

func TestClaimExpiryNotice(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, 6))

	claimed, err := s.ClaimExpiryNotice(ctx, 6)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimExpiryNotice(ctx, 6)
	require.NoError(t, err)
	assert.False(t, claimed, "only one claim per episode")

	// A subscription grant opens a new episode.
	_, err = s.ExtendSubscription(ctx, 6, sec(time.Now()), time.Hour)
	require.NoError(t, err)

	claimed, err = s.ClaimExpiryNotice(ctx, 6)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestGrantTrialClearsExpiredNotified(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, 7))

	claimed, err := s.ClaimExpiryNotice(ctx, 7)
	require.NoError(t, err)
	require.True(t, claimed)

	now := sec(time.Now())
	granted, err := s.GrantTrial(ctx, 7, now, now.Add(72*time.Hour))
	require.NoError(t, err)
	require.True(t, granted)

	u, err := s.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.False(t, u.ExpiredNotified)
}

func TestListUsersWithTimezone(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetTimezone(ctx, 30, "America/Toronto"))
	require.NoError(t, s.SetTimezone(ctx, 10, "Europe/London"))
	require.NoError(t, s.EnsureUser(ctx, 20)) // no zone

	users, err := s.ListUsersWithTimezone(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(10), users[0].ID)
	assert.Equal(t, int64(30), users[1].ID)
}

func TestAuditAppendAndPrune(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, 8))

	require.NoError(t, s.AppendAudit(ctx, 8, "trial_granted", "72h"))
	require.NoError(t, s.AppendAudit(ctx, 8, "subscription_extended", "720h"))

	// Nothing is old enough yet.
	n, err := s.PruneAudit(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	// Everything is older than a future cutoff.
	n, err = s.PruneAudit(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
