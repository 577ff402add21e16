package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/logctx"
	"github.com/clubgate/clubgate/pkg/tool"
	"github.com/clubgate/clubgate/pkg/types"
)

// UpsellResult reports one created upgrade offer.
type UpsellResult struct {
	Attempt *models.UpsellAttempt
	Notify  types.NotifyOutcome
}

// OfferUpsells scans active non-lifetime memberships and creates at most one
// upgrade offer per (user, channel, from_days). Re-running the sweep finds
// the existing attempts and does nothing.
func (s *Service) OfferUpsells(ctx context.Context, asOf time.Time) ([]UpsellResult, error) {
	memberships, err := s.store.ActiveNonLifetimeMemberships(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active memberships: %w", err)
	}

	var results []UpsellResult
	for _, m := range memberships {
		if m.DurationDays == nil || !m.ActiveAt(asOf) {
			continue
		}
		step := s.cfg.GetUpsellStep(*m.DurationDays)
		if step == nil {
			continue
		}
		res, err := s.offerOne(ctx, m, step.ToPlanID, step.DiscountPct, asOf)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("upsell_offer_failed", "membership_id", m.ID, "err", err)
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

func (s *Service) offerOne(ctx context.Context, m *models.Membership, toPlanID string, discountPct int, asOf time.Time) (*UpsellResult, error) {
	target := s.cfg.GetPlanByID(toPlanID)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, toPlanID)
	}
	if target.DurationDays == nil {
		return nil, fmt.Errorf("upsell target %s is a lifetime plan", toPlanID)
	}

	var attempt *models.UpsellAttempt
	err := s.store.Transact(ctx, func(tx Store) error {
		existing, err := tx.UpsellByKey(ctx, m.UserID, m.ChannelID, *m.DurationDays)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to check existing upsell: %w", err)
		}
		if existing != nil {
			return ErrStaleRecord
		}

		price := target.PriceMinor * int64(100-discountPct) / 100
		attempt = &models.UpsellAttempt{
			ID:           tool.GenerateUUIDV7(),
			UserID:       m.UserID,
			ChannelID:    m.ChannelID,
			MembershipID: m.ID,
			FromDays:     *m.DurationDays,
			ToDays:       *target.DurationDays,
			ToPlanID:     target.ID,
			PriceMinor:   price,
			DiscountPct:  discountPct,
			Status:       types.UpsellStatusPending,
			OfferedAt:    asOf,
		}
		return tx.CreateUpsellAttempt(ctx, attempt)
	})
	if err != nil {
		if errors.Is(err, ErrStaleRecord) {
			return nil, nil
		}
		return nil, err
	}

	res := &UpsellResult{Attempt: attempt, Notify: types.NotifySent}

	user, err := s.store.GetUser(ctx, m.UserID)
	if err != nil {
		res.Notify = types.NotifyFailed
		return res, nil
	}
	ch, err := s.store.GetChannel(ctx, m.ChannelID)
	if err != nil {
		res.Notify = types.NotifyFailed
		return res, nil
	}
	text := fmt.Sprintf("Upgrade your %s access from %d to %d days at %d%% off. Reply /upgrade to accept.",
		ch.Title, attempt.FromDays, attempt.ToDays, discountPct)
	if err := s.msgr.SendMessage(ctx, user.TelegramID, text); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("upsell_notify_failed", "attempt_id", attempt.ID, "err", err)
		res.Notify = types.NotifyFailed
	}
	return res, nil
}

// DecideUpsell records the user's accept/decline. The attempt is mutated at
// most once; a second decision returns ErrAlreadyDecided.
func (s *Service) DecideUpsell(ctx context.Context, attemptID string, accepted bool, now time.Time) (*models.UpsellAttempt, error) {
	var attempt *models.UpsellAttempt
	err := s.store.Transact(ctx, func(tx Store) error {
		a, err := tx.GetUpsellAttempt(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to load upsell attempt: %w", err)
		}
		if a.Status != types.UpsellStatusPending {
			return ErrAlreadyDecided
		}
		if accepted {
			a.Status = types.UpsellStatusAccepted
		} else {
			a.Status = types.UpsellStatusDeclined
		}
		a.DecidedAt = &now
		attempt = a
		return tx.SaveUpsellAttempt(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}
