package store

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/clubgate/clubgate/internal/app/service/membership"
	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/tool"
)

// Conversation state is keyed by telegram user id: one in-flight flow per
// user, with an explicit expiry so abandoned flows do not leak.

func (s *GormStore) GetConversationState(ctx context.Context, telegramID int64, asOf time.Time) (*models.ConversationState, error) {
	var st models.ConversationState
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&st).Error
	if err != nil {
		return nil, translate(err)
	}
	if st.Expired(asOf) {
		return nil, membership.ErrNotFound
	}
	return &st, nil
}

func (s *GormStore) PutConversationState(ctx context.Context, telegramID int64, state string, payload datatypes.JSON, ttl time.Duration) error {
	if payload == nil {
		payload = datatypes.JSON([]byte("{}"))
	}
	st := &models.ConversationState{
		ID:         tool.GenerateUUIDV7(),
		TelegramID: telegramID,
		State:      state,
		Payload:    payload,
		ExpiresAt:  time.Now().Add(ttl),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "payload", "expires_at", "updated_at"}),
	}).Create(st).Error
}

func (s *GormStore) ClearConversationState(ctx context.Context, telegramID int64) error {
	return s.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Delete(&models.ConversationState{}).Error
}

// PurgeExpiredConversationState drops abandoned flows. Returns the number of
// rows removed.
func (s *GormStore) PurgeExpiredConversationState(ctx context.Context, asOf time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", asOf).
		Delete(&models.ConversationState{})
	return res.RowsAffected, res.Error
}
