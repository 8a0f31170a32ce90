package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/pkg/logx"
)

type fakeNoticeStore struct {
	mu       sync.Mutex
	notified map[int64]bool
	claimErr error
	audit    []string
}

func newNoticeStore() *fakeNoticeStore {
	return &fakeNoticeStore{notified: map[int64]bool{}}
}

func (f *fakeNoticeStore) ClaimExpiryNotice(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.notified[userID] {
		return false, nil
	}
	f.notified[userID] = true
	return true, nil
}

func (f *fakeNoticeStore) AppendAudit(_ context.Context, _ int64, action, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, action)
	return nil
}

type recordingSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingSender) Send(_ context.Context, _ int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

type recordingCanceller struct {
	mu    sync.Mutex
	calls []int64
}

func (r *recordingCanceller) CancelAll(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID)
}

func newTestDispatcher(store NoticeStore, sender Sender) (*Dispatcher, *recordingCanceller) {
	svc := NewService(Config{}, sender, logx.Nop())
	d := NewDispatcher(store, svc, logx.Nop())
	c := &recordingCanceller{}
	d.SetTriggers(c)
	return d, c
}

func TestOnAccessDeniedNotifiesOncePerEpisode(t *testing.T) {
	t.Parallel()

	store := newNoticeStore()
	sender := &recordingSender{}
	d, canceller := newTestDispatcher(store, sender)
	ctx := context.Background()

	d.OnAccessDenied(ctx, 1)
	d.OnAccessDenied(ctx, 1)
	d.OnAccessDenied(ctx, 1)

	require.Len(t, sender.texts, 1, "one notice per expiry episode")
	assert.Contains(t, sender.texts[0], "expired")
	assert.Equal(t, []string{"expiry_notified"}, store.audit)

	// Triggers are torn down on every denial, notified or not.
	assert.Equal(t, []int64{1, 1, 1}, canceller.calls)
}

func TestOnAccessDeniedNewEpisodeNotifiesAgain(t *testing.T) {
	t.Parallel()

	store := newNoticeStore()
	sender := &recordingSender{}
	d, _ := newTestDispatcher(store, sender)
	ctx := context.Background()

	d.OnAccessDenied(ctx, 1)
	require.Len(t, sender.texts, 1)

	// Re-granting access clears the flag (done by the access engine); the
	// next expiry is a fresh episode with its own single notice.
	store.mu.Lock()
	store.notified[1] = false
	store.mu.Unlock()

	d.OnAccessDenied(ctx, 1)
	d.OnAccessDenied(ctx, 1)
	assert.Len(t, sender.texts, 2)
}

func TestOnAccessDeniedDeliveryFailureKeepsClaim(t *testing.T) {
	t.Parallel()

	store := newNoticeStore()
	sender := &recordingSender{err: errors.New("telegram down")}
	d, _ := newTestDispatcher(store, sender)
	ctx := context.Background()

	d.OnAccessDenied(ctx, 1)

	// The claim stands: no retry storm once the channel recovers.
	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	d.OnAccessDenied(ctx, 1)

	assert.Empty(t, sender.texts)
	assert.Equal(t, []string{"expiry_notified"}, store.audit)
}

func TestOnAccessDeniedClaimErrorSendsNothing(t *testing.T) {
	t.Parallel()

	store := newNoticeStore()
	store.claimErr = errors.New("db locked")
	sender := &recordingSender{}
	d, _ := newTestDispatcher(store, sender)

	d.OnAccessDenied(context.Background(), 1)
	assert.Empty(t, sender.texts)
	assert.Empty(t, store.audit)
}

func TestOnAccessDeniedWithoutTriggersBound(t *testing.T) {
	t.Parallel()

	store := newNoticeStore()
	sender := &recordingSender{}
	svc := NewService(Config{}, sender, logx.Nop())
	d := NewDispatcher(store, svc, logx.Nop())

	// No SetTriggers call; must still notify without panicking.
	d.OnAccessDenied(context.Background(), 1)
	assert.Len(t, sender.texts, 1)
}
