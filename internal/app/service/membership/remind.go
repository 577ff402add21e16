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

// ReminderResult reports one sent (or attempted) expiry reminder.
type ReminderResult struct {
	Membership *models.Membership
	DaysLeft   int
	Notify     types.NotifyOutcome
}

// SendDueReminders sends the 1-day and 3-day expiry reminders. The flag for a
// threshold is set in the same transaction that decides to send, so a sweep
// running twice within the same window never duplicates a reminder. A record
// inside the 1-day window has both flags set at once: the stale 3-day
// reminder is pointless by then.
func (s *Service) SendDueReminders(ctx context.Context, asOf time.Time) ([]ReminderResult, error) {
	var results []ReminderResult

	oneDay, err := s.store.DueReminders(ctx, asOf, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list 1-day reminders: %w", err)
	}
	for _, m := range oneDay {
		res := s.remindOne(ctx, m, asOf, 1)
		if res != nil {
			results = append(results, *res)
		}
	}

	threeDay, err := s.store.DueReminders(ctx, asOf, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to list 3-day reminders: %w", err)
	}
	for _, m := range threeDay {
		res := s.remindOne(ctx, m, asOf, 3)
		if res != nil {
			results = append(results, *res)
		}
	}

	return results, nil
}

func (s *Service) remindOne(ctx context.Context, m *models.Membership, asOf time.Time, threshold int) *ReminderResult {
	err := s.store.Transact(ctx, func(tx Store) error {
		cur, err := tx.GetMembership(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("failed to reload membership: %w", err)
		}
		if !cur.ActiveAt(asOf) {
			return ErrStaleRecord
		}
		switch threshold {
		case 1:
			if cur.Reminded1d {
				return ErrStaleRecord
			}
			cur.Reminded1d = true
			cur.Reminded3d = true
		case 3:
			if cur.Reminded3d {
				return ErrStaleRecord
			}
			cur.Reminded3d = true
		default:
			return fmt.Errorf("unsupported reminder threshold: %d", threshold)
		}
		*m = *cur
		return tx.SaveMembership(ctx, cur)
	})
	if err != nil {
		if !errors.Is(err, ErrStaleRecord) {
			logctx.FromCtx(ctx, s.log).Errorw("reminder_flag_failed", "membership_id", m.ID, "err", err)
		}
		return nil
	}

	res := &ReminderResult{Membership: m, DaysLeft: m.DaysLeft(asOf), Notify: types.NotifySent}

	user, err := s.store.GetUser(ctx, m.UserID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("reminder_user_lookup_failed", "membership_id", m.ID, "err", err)
		res.Notify = types.NotifyFailed
		return res
	}
	ch, err := s.store.GetChannel(ctx, m.ChannelID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("reminder_channel_lookup_failed", "membership_id", m.ID, "err", err)
		res.Notify = types.NotifyFailed
		return res
	}

	text := reminderText(ch.Title, res.DaysLeft)
	if err := s.msgr.SendMessage(ctx, user.TelegramID, text); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("reminder_notify_failed", "membership_id", m.ID, "err", err)
		res.Notify = types.NotifyFailed
	}
	return res
}

func reminderText(channelTitle string, daysLeft int) string {
	if daysLeft <= 1 {
		return fmt.Sprintf("Your access to %s expires tomorrow. Renew with /plans to keep it.", channelTitle)
	}
	return fmt.Sprintf("Your access to %s expires in %d days. Renew with /plans to keep it.", channelTitle, daysLeft)
}
