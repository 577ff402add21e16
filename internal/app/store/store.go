package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubgate/clubgate/internal/app/service/membership"
	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/tool"
	"github.com/clubgate/clubgate/pkg/types"
)

// GormStore is the membership record store: the only component that touches
// persisted state. The lifecycle engine and sweeps see it through the
// membership.Store interface.
type GormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// NewStore provides the engine-facing interface.
func NewStore(db *gorm.DB) membership.Store { return New(db) }

var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(NewStore),
)

// Transact runs fn inside one database transaction. Nested calls reuse the
// surrounding transaction through gorm's savepoint handling.
func (s *GormStore) Transact(ctx context.Context, fn func(membership.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return membership.ErrNotFound
	}
	return err
}

// EnsureUser reads the user row FOR UPDATE. Concurrent purchases for the same
// user serialize on this lock before either of them reads the membership.
func (s *GormStore) EnsureUser(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("telegram_id = ?", telegramID).First(&u).Error
	if err == nil {
		changed := false
		if username != "" && u.Username != username {
			u.Username = username
			changed = true
		}
		if firstName != "" && u.FirstName != firstName {
			u.FirstName = firstName
			changed = true
		}
		if changed {
			if err := s.db.WithContext(ctx).Save(&u).Error; err != nil {
				return nil, fmt.Errorf("failed to update user: %w", err)
			}
		}
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u = models.User{
		ID:         tool.GenerateUUIDV7(),
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		Tier:       types.TierBudget,
		Status:     types.UserStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) SaveUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}

func (s *GormStore) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&ch).Error; err != nil {
		return nil, translate(err)
	}
	return &ch, nil
}

func (s *GormStore) ActiveChannels(ctx context.Context) ([]*models.Channel, error) {
	var out []*models.Channel
	if err := s.db.WithContext(ctx).Where("is_active").Order("created_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveMembership reads the row FOR UPDATE. Inside CreateOrExtend's
// transaction a second renewal for the same pair blocks here until the first
// commits, then extends from the moved expiry instead of the stale one.
func (s *GormStore) ActiveMembership(ctx context.Context, userID, channelID string) (*models.Membership, error) {
	var m models.Membership
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND channel_id = ? AND is_active", userID, channelID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) GetMembership(ctx context.Context, id string) (*models.Membership, error) {
	var m models.Membership
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) SaveMembership(ctx context.Context, m *models.Membership) error {
	return s.db.WithContext(ctx).Save(m).Error
}

// DeactivateMembership is the conflict surface between the expiry sweep and a
// concurrent renewal: the guarded UPDATE matches zero rows when a renewal
// moved the expiry forward, and the stale expiry is abandoned.
func (s *GormStore) DeactivateMembership(ctx context.Context, id string, asOf time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("id = ? AND is_active AND expiry_date IS NOT NULL AND expiry_date <= ?", id, asOf).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return membership.ErrStaleRecord
	}
	return nil
}

func (s *GormStore) HasOtherActiveMembership(ctx context.Context, userID, exceptID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("user_id = ? AND id != ? AND is_active", userID, exceptID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) DueExpired(ctx context.Context, asOf time.Time) ([]*models.Membership, error) {
	var out []*models.Membership
	err := s.db.WithContext(ctx).
		Where("is_active AND expiry_date IS NOT NULL AND expiry_date <= ?", asOf).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) DueReminders(ctx context.Context, asOf time.Time, days int) ([]*models.Membership, error) {
	flag := "reminded_3d"
	if days == 1 {
		flag = "reminded_1d"
	}
	limit := asOf.Add(time.Duration(days) * 24 * time.Hour)
	var out []*models.Membership
	err := s.db.WithContext(ctx).
		Where("is_active AND expiry_date > ? AND expiry_date <= ? AND NOT "+flag, asOf, limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ActiveNonLifetimeMemberships(ctx context.Context) ([]*models.Membership, error) {
	var out []*models.Membership
	err := s.db.WithContext(ctx).
		Where("is_active AND expiry_date IS NOT NULL").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) PaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("provider_payment_id = ?", providerPaymentID).First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) UpsellByKey(ctx context.Context, userID, channelID string, fromDays int) (*models.UpsellAttempt, error) {
	var a models.UpsellAttempt
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND channel_id = ? AND from_days = ?", userID, channelID, fromDays).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *GormStore) GetUpsellAttempt(ctx context.Context, id string) (*models.UpsellAttempt, error) {
	var a models.UpsellAttempt
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *GormStore) CreateUpsellAttempt(ctx context.Context, a *models.UpsellAttempt) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *GormStore) SaveUpsellAttempt(ctx context.Context, a *models.UpsellAttempt) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *GormStore) PendingUpsellForUser(ctx context.Context, userID string) (*models.UpsellAttempt, error) {
	var a models.UpsellAttempt
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.UpsellStatusPending).
		Order("offered_at desc").
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}
