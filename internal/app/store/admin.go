package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/types"
)

type ScanPaymentsRequest struct {
	Filters   []*types.CommonFilter
	From      int
	Size      int
	SortBy    string
	SortOrder string
}

type ScanPaymentsResponse struct {
	Items []*models.Payment
	Total int64
}

// filtersAnd combines admin list filters into a single WHERE expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ScanPayments implements the paginated admin listing over the payment audit
// trail.
func (s *GormStore) ScanPayments(ctx context.Context, req *ScanPaymentsRequest) (*ScanPaymentsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Payment{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "paid_at"
	}
	desc := req.SortOrder != "asc"

	var items []*models.Payment
	err := tx.Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: desc}).
		Offset(req.From).Limit(req.Size).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan payments: %w", err)
	}
	return &ScanPaymentsResponse{Items: items, Total: total}, nil
}

// MembershipsForUser lists all of a user's memberships, newest first.
func (s *GormStore) MembershipsForUser(ctx context.Context, userID string) ([]*models.Membership, error) {
	var out []*models.Membership
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
