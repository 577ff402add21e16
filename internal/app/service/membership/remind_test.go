package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubgate/clubgate/pkg/types"
)

func TestSendDueReminders_ThreeDayWindow(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	res := seedActiveMembership(t, svc, store, ch.ID, 42, 3*24*time.Hour-time.Hour, now)
	msgr.sent = nil

	sent, err := svc.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 3, sent[0].DaysLeft)
	assert.Equal(t, types.NotifySent, sent[0].Notify)

	m, err := store.GetMembership(context.Background(), res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, m.Reminded3d)
	assert.False(t, m.Reminded1d)
}

func TestSendDueReminders_NoDuplicateWithinWindow(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	seedActiveMembership(t, svc, store, ch.ID, 42, 3*24*time.Hour-time.Hour, now)
	msgr.sent = nil

	first, err := svc.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	// Same threshold-crossing window, later the same day.
	second, err := svc.SendDueReminders(context.Background(), now.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, msgr.sent, 1)
}

func TestSendDueReminders_OneDayAfterThreeDay(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	res := seedActiveMembership(t, svc, store, ch.ID, 42, 3*24*time.Hour-time.Hour, now)
	msgr.sent = nil

	sent, err := svc.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 3, sent[0].DaysLeft)

	// Two days later the membership crosses the 1-day threshold.
	later := now.Add(2 * 24 * time.Hour)
	sent, err = svc.SendDueReminders(context.Background(), later)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].DaysLeft)

	m, err := store.GetMembership(context.Background(), res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, m.Reminded1d)

	// Each threshold fired exactly once for the cycle.
	assert.Len(t, msgr.sent, 2)
}

func TestSendDueReminders_OneDayWindowSuppressesStaleThreeDay(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	// Membership created already inside the 1-day window; the 3-day reminder
	// was never sent and is pointless now.
	now := time.Now()
	res := seedActiveMembership(t, svc, store, ch.ID, 42, 12*time.Hour, now)
	msgr.sent = nil

	sent, err := svc.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].DaysLeft)
	assert.Len(t, msgr.sent, 1, "only the 1-day reminder goes out")

	m, err := store.GetMembership(context.Background(), res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, m.Reminded1d)
	assert.True(t, m.Reminded3d)
}

func TestSendDueReminders_DeliveryFailureStillSetsFlag(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{failSend: true}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	res := seedActiveMembership(t, svc, store, ch.ID, 42, 3*24*time.Hour-time.Hour, now)

	sent, err := svc.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, types.NotifyFailed, sent[0].Notify)

	m, err := store.GetMembership(context.Background(), res.Membership.ID)
	require.NoError(t, err)
	assert.True(t, m.Reminded3d, "the flag is set with the decision, not the delivery")
}

func TestSendDueReminders_IgnoresLifetimeAndInactive(t *testing.T) {
	store := newFakeStore()
	msgr := &fakeMessenger{}
	svc := newTestService(store, msgr)
	ch := store.addChannel("VIP Signals", -100123)

	now := time.Now()
	_, err := svc.CreateOrExtend(context.Background(), PurchaseParams{
		TelegramID: 7, ChannelID: ch.ID, Plan: svc.cfg.GetPlanByID("lifetime"),
		AmountMinor: 999_900, Currency: "INR", ProviderPaymentID: "pay_lt", Now: now,
	})
	require.NoError(t, err)

	expired := seedActiveMembership(t, svc, store, ch.ID, 8, 2*24*time.Hour, now)
	expired.Membership.IsActive = false
	require.NoError(t, store.SaveMembership(context.Background(), expired.Membership))
	msgr.sent = nil

	sent, err := svc.SendDueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, sent)
}
