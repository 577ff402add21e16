package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/tool"
	"github.com/clubgate/clubgate/pkg/types"
)

type StatisticType string

const (
	StatisticTypeDailyPaymentCount  StatisticType = "daily_payment_count"
	StatisticTypeDailyRevenue       StatisticType = "daily_revenue"
	StatisticTypeDailyActiveCount   StatisticType = "daily_active_count"
	StatisticTypeTotalActiveCount   StatisticType = "total_active_count"
	StatisticTypeTierDistribution   StatisticType = "tier_distribution"
	StatisticTypeUpsellAcceptCounts StatisticType = "upsell_accept_counts"
)

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type StatisticRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*StatisticDataItem  `json:"data_items"`
}

type StatisticResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

// Service provides membership analytics.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

var Module = fx.Options(
	fx.Provide(New),
)

// WriteDailySnapshots records per-channel active counts and the day's revenue.
// Idempotent per (snapshot_date, channel): a rerun updates the same rows.
func (s *Service) WriteDailySnapshots(ctx context.Context, snapshotDate time.Time) error {
	date := snapshotDate.Format(time.DateOnly)

	var channels []*models.Channel
	if err := s.db.WithContext(ctx).Where("is_active").Find(&channels).Error; err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	for _, ch := range channels {
		var activeCount int64
		err := s.db.WithContext(ctx).Model(&models.Membership{}).
			Where("channel_id = ? AND is_active AND (expiry_date IS NULL OR expiry_date > ?)", ch.ID, snapshotDate).
			Count(&activeCount).Error
		if err != nil {
			return fmt.Errorf("failed to count active memberships: %w", err)
		}

		var revenue int64
		err = s.db.WithContext(ctx).Model(&models.Payment{}).
			Select("COALESCE(SUM(amount_minor), 0)").
			Joins("JOIN memberships ON memberships.id = payments.membership_id").
			Where("memberships.channel_id = ? AND DATE(payments.paid_at) = ?", ch.ID, date).
			Scan(&revenue).Error
		if err != nil {
			return fmt.Errorf("failed to sum revenue: %w", err)
		}

		snap := &models.MembershipDailySnapshot{
			ID:                tool.GenerateUUIDV7(),
			SnapshotDate:      date,
			ChannelID:         ch.ID,
			ActiveCount:       activeCount,
			RevenueMinor:      revenue,
			SnapshotCreatedAt: time.Now(),
		}
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "snapshot_date"}, {Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active_count", "revenue_minor", "snapshot_created_at"}),
		}).Create(snap).Error
		if err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	return nil
}

func (s *Service) getDailyPaymentCount(ctx context.Context) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Table((models.Payment{}).TableName()).
		Select("TO_CHAR(paid_at, 'YYYY-MM-DD') as date, count(*) as value").
		Group("TO_CHAR(paid_at, 'YYYY-MM-DD')").
		Order("date").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyRevenue(ctx context.Context) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Table((models.Payment{}).TableName()).
		Select("TO_CHAR(paid_at, 'YYYY-MM-DD') as date, currency AS label, sum(amount_minor) as value").
		Group("TO_CHAR(paid_at, 'YYYY-MM-DD')").
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true}).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyActiveCount(ctx context.Context) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Table((models.MembershipDailySnapshot{}).TableName()).
		Select("snapshot_date as date, sum(active_count) as value").
		Group("snapshot_date").
		Order("snapshot_date").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTotalActiveCount(ctx context.Context) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Table((models.Membership{}).TableName()).
		Select("count(*) as value").
		Where("is_active AND (expiry_date IS NULL OR expiry_date > ?)", time.Now()).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTierDistribution(ctx context.Context) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Table((models.User{}).TableName()).
		Select("tier as label, count(*) as value").
		Group("tier").
		Order("label").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getUpsellAcceptCounts(ctx context.Context) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Table((models.UpsellAttempt{}).TableName()).
		Select("status as label, count(*) as value").
		Group("status").
		Order("label").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, item *StatisticDataItem) ([]StatisticResponseDataItem, error) {
	switch item.ID {
	case StatisticTypeDailyPaymentCount:
		return s.getDailyPaymentCount(ctx)
	case StatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx)
	case StatisticTypeDailyActiveCount:
		return s.getDailyActiveCount(ctx)
	case StatisticTypeTotalActiveCount:
		return s.getTotalActiveCount(ctx)
	case StatisticTypeTierDistribution:
		return s.getTierDistribution(ctx)
	case StatisticTypeUpsellAcceptCounts:
		return s.getUpsellAcceptCounts(ctx)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", item.ID)
	}
}

// GetMembershipStatistic resolves the requested data items concurrently.
func (s *Service) GetMembershipStatistic(ctx context.Context, request *StatisticRequest) (*StatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []StatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *StatisticDataItem) {
			defer wg.Done()
			res, err := s.getStatistic(ctx, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []StatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]StatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &StatisticResponse{DataItems: results}, nil
}
