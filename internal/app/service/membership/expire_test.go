package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubgate/clubgate/pkg/types"
)

func seedActiveMembership(t *testing.T, svc *Service, store *fakeStore, channelID string, telegramID int64, expiresIn time.Duration, now time.Time) *PurchaseResult {
	t.Helper()
	res, err := svc.CreateOrExtend(context.Background(), PurchaseParams{
		TelegramID: telegramID, ChannelID: channelID, Plan: svc.cfg.GetPlanByID("monthly"),
		AmountMinor: 99_900, Currency: "INR",
		ProviderPaymentID: "pay_" + time.Now().Format("150405.000000") + "_" + string(rune('a'+telegramID%26)),
		Now:               now,
	})
	require.NoError(t, err)
	exp := now.Add(expiresIn)
	res.Membership.ExpiryDate = &exp
	require.NoError(t, store.SaveMembership(context.Background(), res.Membership))
	return res
}

func TestExpireDue_ExpiresAndRevokesOnce(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	res := seedActiveMembership(t, svc, store, ch.ID, 42, -time.Hour, now)
	msgr.sent = nil

	expired, err := svc.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	assert.Equal(t, res.Membership.ID, expired[0].Membership.ID)
	assert.False(t, expired[0].Membership.IsActive)
	assert.Equal(t, types.NotifySent, expired[0].Revoke)
	assert.Equal(t, types.NotifySent, expired[0].Notify)
	assert.Equal(t, 1, msgr.revocations)
	assert.Len(t, msgr.sent, 1)

	user, err := store.GetUser(context.Background(), res.Membership.UserID)
	require.NoError(t, err)
	assert.Equal(t, types.UserStatusExpired, user.Status)
}

func TestExpireDue_Idempotent(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	seedActiveMembership(t, svc, store, ch.ID, 42, -time.Hour, now)

	first, err := svc.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := svc.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, second, "a second run with the same timestamp does no extra work")
	assert.Equal(t, 1, msgr.revocations)
}

func TestExpireDue_SkipsConcurrentlyRenewedRecord(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	res := seedActiveMembership(t, svc, store, ch.ID, 42, -time.Hour, now)

	// Simulate a renewal committing between the sweep's list query and its
	// per-record update: push the expiry into the future behind its back.
	due, err := store.DueExpired(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	future := now.Add(30 * 24 * time.Hour)
	res.Membership.ExpiryDate = &future
	require.NoError(t, store.SaveMembership(context.Background(), res.Membership))

	expired, err := svc.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, expired, "the stale expiry must not clobber the renewal")

	m, err := store.GetMembership(context.Background(), res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, m.IsActive)
}

func TestExpireDue_RevokeFailureStillMarksExpired(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{failRevoke: true}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	res := seedActiveMembership(t, svc, store, ch.ID, 42, -time.Hour, now)

	expired, err := svc.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, types.NotifyFailed, expired[0].Revoke)

	m, err := store.GetMembership(context.Background(), res.Membership.ID)
	require.NoError(t, err)
	assert.False(t, m.IsActive, "side effects are best-effort; the state change is authoritative")
}

func TestExpireDue_LifetimeNeverExpires(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	_, err := svc.CreateOrExtend(context.Background(), PurchaseParams{
		TelegramID: 42, ChannelID: ch.ID, Plan: svc.cfg.GetPlanByID("lifetime"),
		AmountMinor: 999_900, Currency: "INR", ProviderPaymentID: "pay_lt", Now: time.Now(),
	})
	require.NoError(t, err)

	expired, err := svc.ExpireDue(context.Background(), time.Now().Add(10*365*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestExpireDue_ContinuesPastFailingRecord(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	a := seedActiveMembership(t, svc, store, ch.ID, 42, -2*time.Hour, now)
	b := seedActiveMembership(t, svc, store, ch.ID, 43, -time.Hour, now)

	// Orphan one membership's user so its per-record transaction fails.
	delete(store.users, a.Membership.UserID)

	expired, err := svc.ExpireDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, expired, 1, "one record's failure must not abort the sweep")
	assert.Equal(t, b.Membership.ID, expired[0].Membership.ID)
}
