package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/logctx"
	"github.com/clubgate/clubgate/pkg/types"
)

// ExpireResult reports one expired membership and the outcomes of the
// best-effort revoke and notification that followed the state change.
type ExpireResult struct {
	Membership *models.Membership
	Revoke     types.NotifyOutcome
	Notify     types.NotifyOutcome
}

// ExpireDue deactivates every active membership whose expiry is at or before
// asOf, then revokes channel access and notifies the user. Idempotent: a
// second run with the same asOf finds nothing left to do. One record's
// failure never aborts the rest of the batch.
func (s *Service) ExpireDue(ctx context.Context, asOf time.Time) ([]ExpireResult, error) {
	due, err := s.store.DueExpired(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list due memberships: %w", err)
	}

	results := make([]ExpireResult, 0, len(due))
	for _, m := range due {
		res, err := s.expireOne(ctx, m, asOf)
		if err != nil {
			if errors.Is(err, ErrStaleRecord) {
				// A renewal won the race; the record stays active.
				logctx.FromCtx(ctx, s.log).Infow("expiry_skipped_renewed", "membership_id", m.ID)
				continue
			}
			logctx.FromCtx(ctx, s.log).Errorw("expiry_failed", "membership_id", m.ID, "err", err)
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

func (s *Service) expireOne(ctx context.Context, m *models.Membership, asOf time.Time) (*ExpireResult, error) {
	var user *models.User

	err := s.store.Transact(ctx, func(tx Store) error {
		if err := tx.DeactivateMembership(ctx, m.ID, asOf); err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, m.UserID)
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		other, err := tx.HasOtherActiveMembership(ctx, m.UserID, m.ID)
		if err != nil {
			return fmt.Errorf("failed to check remaining memberships: %w", err)
		}
		if !other && u.Status == types.UserStatusActive {
			u.Status = types.UserStatusExpired
			if err := tx.SaveUser(ctx, u); err != nil {
				return fmt.Errorf("failed to save user: %w", err)
			}
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.IsActive = false
	res := &ExpireResult{Membership: m, Revoke: types.NotifySkipped, Notify: types.NotifySkipped}

	ch, err := s.store.GetChannel(ctx, m.ChannelID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("expiry_channel_lookup_failed", "channel_id", m.ChannelID, "err", err)
		res.Revoke = types.NotifyFailed
		res.Notify = types.NotifyFailed
		return res, nil
	}

	if err := s.msgr.RevokeAccess(ctx, ch.ChatID, user.TelegramID); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("revoke_failed", "membership_id", m.ID, "err", err)
		res.Revoke = types.NotifyFailed
	} else {
		res.Revoke = types.NotifySent
	}

	text := fmt.Sprintf("Your access to %s has expired. Renew any time with /plans.", ch.Title)
	if err := s.msgr.SendMessage(ctx, user.TelegramID, text); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("expiry_notify_failed", "membership_id", m.ID, "err", err)
		res.Notify = types.NotifyFailed
	} else {
		res.Notify = types.NotifySent
	}

	logctx.FromCtx(ctx, s.log).Infow("membership_expired", "membership_id", m.ID,
		"revoke", res.Revoke, "notify", res.Notify)
	return res, nil
}
