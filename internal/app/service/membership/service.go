package membership

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/config"
	"github.com/clubgate/clubgate/pkg/types"
)

var (
	// ErrNotFound is returned by Store lookups that match no record.
	ErrNotFound = errors.New("record not found")
	// ErrStaleRecord means a conditional write matched no rows because a
	// concurrent transaction changed the record first. Callers skip the
	// record; they never reapply the stale write.
	ErrStaleRecord = errors.New("record changed concurrently")
	// ErrUnknownPlan is fatal for the enclosing request: silently picking a
	// wrong plan would misprice a subscription.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrAlreadyDecided means an upsell attempt was accepted or declined before.
	ErrAlreadyDecided = errors.New("upsell attempt already decided")
)

// Store is the membership record store, the sole writer of persisted state.
// The engine and sweeps operate only through it.
type Store interface {
	// Transact runs fn inside one database transaction. All writes of a
	// lifecycle transition go through a single Transact call.
	Transact(ctx context.Context, fn func(Store) error) error

	EnsureUser(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error

	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	ActiveChannels(ctx context.Context) ([]*models.Channel, error)

	ActiveMembership(ctx context.Context, userID, channelID string) (*models.Membership, error)
	GetMembership(ctx context.Context, id string) (*models.Membership, error)
	SaveMembership(ctx context.Context, m *models.Membership) error
	// DeactivateMembership flips is_active off only while the record is still
	// active with an expiry at or before asOf. A renewal committed in between
	// makes the condition fail and the call returns ErrStaleRecord.
	DeactivateMembership(ctx context.Context, id string, asOf time.Time) error
	HasOtherActiveMembership(ctx context.Context, userID, exceptID string) (bool, error)
	DueExpired(ctx context.Context, asOf time.Time) ([]*models.Membership, error)
	// DueReminders lists active non-lifetime memberships expiring within the
	// given number of days whose flag for that threshold is still unset.
	DueReminders(ctx context.Context, asOf time.Time, days int) ([]*models.Membership, error)
	ActiveNonLifetimeMemberships(ctx context.Context) ([]*models.Membership, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	PaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error)

	UpsellByKey(ctx context.Context, userID, channelID string, fromDays int) (*models.UpsellAttempt, error)
	GetUpsellAttempt(ctx context.Context, id string) (*models.UpsellAttempt, error)
	CreateUpsellAttempt(ctx context.Context, a *models.UpsellAttempt) error
	SaveUpsellAttempt(ctx context.Context, a *models.UpsellAttempt) error
}

// Messenger is the external messaging-platform collaborator. All calls are
// best-effort side effects with bounded timeouts; failures never roll back a
// committed state change.
type Messenger interface {
	CreateInviteLink(ctx context.Context, chatID int64, expireAt time.Time) (string, error)
	SendMessage(ctx context.Context, telegramID int64, text string) error
	// RevokeAccess removes the member and immediately lifts the ban so a later
	// purchase can rejoin.
	RevokeAccess(ctx context.Context, chatID, telegramID int64) error
}

// Service is the membership lifecycle engine.
type Service struct {
	store Store
	msgr  Messenger
	cfg   *config.Config
	log   *zap.SugaredLogger
}

func NewService(store Store, msgr Messenger, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{store: store, msgr: msgr, cfg: cfg, log: log}
}

// tierFor classifies cumulative spend against the configured thresholds.
func (s *Service) tierFor(totalSpentMinor int64) types.Tier {
	return types.TierFor(totalSpentMinor, s.cfg.Tiers)
}
