package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/config"
	"github.com/clubgate/clubgate/pkg/tool"
	"github.com/clubgate/clubgate/pkg/types"
)

// fakeStore is an in-memory Store for engine tests. Transact hands out a
// fakeTx that mirrors the gorm store's locking reads: EnsureUser takes a
// per-user lock held until the transaction returns, so concurrent purchases
// for the same user serialize the way the FOR UPDATE row lock serializes
// them.
type fakeStore struct {
	mu          sync.Mutex
	userLocks   map[int64]*sync.Mutex
	users       map[string]*models.User
	channels    map[string]*models.Channel
	memberships map[string]*models.Membership
	payments    map[string]*models.Payment
	upsells     map[string]*models.UpsellAttempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		userLocks:   map[int64]*sync.Mutex{},
		users:       map[string]*models.User{},
		channels:    map[string]*models.Channel{},
		memberships: map[string]*models.Membership{},
		payments:    map[string]*models.Payment{},
		upsells:     map[string]*models.UpsellAttempt{},
	}
}

func (f *fakeStore) addChannel(title string, chatID int64) *models.Channel {
	ch := &models.Channel{ID: tool.GenerateUUIDV7(), Title: title, ChatID: chatID, IsActive: true}
	f.channels[ch.ID] = ch
	return ch
}

func (f *fakeStore) Transact(ctx context.Context, fn func(Store) error) error {
	tx := &fakeTx{fakeStore: f}
	err := fn(tx)
	tx.release()
	return err
}

// fakeTx holds the row locks a transaction acquired until it finishes.
type fakeTx struct {
	*fakeStore
	held []*sync.Mutex
}

func (t *fakeTx) EnsureUser(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	t.lock(t.userLock(telegramID))
	return t.fakeStore.EnsureUser(ctx, telegramID, username, firstName)
}

func (t *fakeTx) lock(mu *sync.Mutex) {
	for _, held := range t.held {
		if held == mu {
			return
		}
	}
	mu.Lock()
	t.held = append(t.held, mu)
}

func (t *fakeTx) release() {
	for _, mu := range t.held {
		mu.Unlock()
	}
	t.held = nil
}

func (f *fakeStore) userLock(telegramID int64) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	mu, ok := f.userLocks[telegramID]
	if !ok {
		mu = &sync.Mutex{}
		f.userLocks[telegramID] = mu
	}
	return mu
}

func (f *fakeStore) EnsureUser(_ context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.TelegramID == telegramID {
			return u, nil
		}
	}
	u := &models.User{
		ID:         tool.GenerateUUIDV7(),
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		Tier:       types.TierBudget,
		Status:     types.UserStatusActive,
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) SaveUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) GetChannel(_ context.Context, id string) (*models.Channel, error) {
	if ch, ok := f.channels[id]; ok {
		return ch, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ActiveChannels(_ context.Context) ([]*models.Channel, error) {
	var out []*models.Channel
	for _, ch := range f.channels {
		if ch.IsActive {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveMembership(_ context.Context, userID, channelID string) (*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.memberships {
		if m.UserID == userID && m.ChannelID == channelID && m.IsActive {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) GetMembership(_ context.Context, id string) (*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.memberships[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) SaveMembership(_ context.Context, m *models.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.memberships[m.ID] = &cp
	return nil
}

func (f *fakeStore) DeactivateMembership(_ context.Context, id string, asOf time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memberships[id]
	if !ok {
		return ErrNotFound
	}
	if !m.IsActive || m.ExpiryDate == nil || m.ExpiryDate.After(asOf) {
		return ErrStaleRecord
	}
	m.IsActive = false
	return nil
}

func (f *fakeStore) HasOtherActiveMembership(_ context.Context, userID, exceptID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.memberships {
		if m.UserID == userID && m.ID != exceptID && m.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) DueExpired(_ context.Context, asOf time.Time) ([]*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Membership
	for _, m := range f.memberships {
		if m.IsActive && m.ExpiryDate != nil && !m.ExpiryDate.After(asOf) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) DueReminders(_ context.Context, asOf time.Time, days int) ([]*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	limit := asOf.Add(time.Duration(days) * 24 * time.Hour)
	var out []*models.Membership
	for _, m := range f.memberships {
		if !m.IsActive || m.ExpiryDate == nil {
			continue
		}
		if !m.ExpiryDate.After(asOf) || m.ExpiryDate.After(limit) {
			continue
		}
		switch days {
		case 1:
			if m.Reminded1d {
				continue
			}
		case 3:
			if m.Reminded3d {
				continue
			}
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) ActiveNonLifetimeMemberships(_ context.Context) ([]*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Membership
	for _, m := range f.memberships {
		if m.IsActive && m.ExpiryDate != nil {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePayment(_ context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.payments {
		if existing.ProviderPaymentID == p.ProviderPaymentID {
			return fmt.Errorf("duplicate provider payment id: %s", p.ProviderPaymentID)
		}
	}
	f.payments[p.ID] = p
	return nil
}

func (f *fakeStore) PaymentByProviderID(_ context.Context, providerPaymentID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ProviderPaymentID == providerPaymentID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) UpsellByKey(_ context.Context, userID, channelID string, fromDays int) (*models.UpsellAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.upsells {
		if a.UserID == userID && a.ChannelID == channelID && a.FromDays == fromDays {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) GetUpsellAttempt(_ context.Context, id string) (*models.UpsellAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.upsells[id]; ok {
		return a, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) CreateUpsellAttempt(_ context.Context, a *models.UpsellAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsells[a.ID] = a
	return nil
}

func (f *fakeStore) SaveUpsellAttempt(_ context.Context, a *models.UpsellAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsells[a.ID] = a
	return nil
}

// fakeMessenger records deliveries and can be told to fail.
type fakeMessenger struct {
	mu          sync.Mutex
	failSend    bool
	failInvite  bool
	failRevoke  bool
	sent        []string
	invites     int
	revocations int
}

func (f *fakeMessenger) CreateInviteLink(_ context.Context, chatID int64, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInvite {
		return "", fmt.Errorf("invite link refused")
	}
	f.invites++
	return fmt.Sprintf("https://t.me/+invite%d", chatID), nil
}

func (f *fakeMessenger) SendMessage(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return fmt.Errorf("delivery failed")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeMessenger) RevokeAccess(_ context.Context, _, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRevoke {
		return fmt.Errorf("revoke failed")
	}
	f.revocations++
	return nil
}

func intPtr(v int) *int { return &v }

func testConfig() *config.Config {
	return &config.Config{
		Tiers: types.DefaultTierThresholds,
		Plans: []*types.Plan{
			{ID: "monthly", Title: "30 days", PriceMinor: 99_900, Currency: "INR", DurationDays: intPtr(30)},
			{ID: "quarterly", Title: "90 days", PriceMinor: 249_900, Currency: "INR", DurationDays: intPtr(90)},
			{ID: "lifetime", Title: "Lifetime", PriceMinor: 999_900, Currency: "INR"},
		},
		Upsells: []*config.UpsellStep{
			{FromDays: 30, ToPlanID: "quarterly", DiscountPct: 20},
		},
	}
}

func newTestService(store *fakeStore, msgr *fakeMessenger) *Service {
	return NewService(store, msgr, testConfig(), zap.NewNop().Sugar())
}
