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

// PurchaseParams describes one captured payment handed over by intake or an
// admin grant.
type PurchaseParams struct {
	TelegramID int64
	Username   string
	FirstName  string
	ChannelID  string
	Plan       *types.Plan
	// AmountMinor is the captured amount; zero for admin grants.
	AmountMinor int64
	Currency    string
	// ProviderPaymentID is the gateway's payment identifier, the idempotency
	// key for webhook retries. Internal grants use a generated inner id.
	ProviderPaymentID string
	Reason            types.MembershipChangeReason
	Now               time.Time
}

// PurchaseResult reports the committed state change plus the outcome of the
// best-effort delivery that followed it.
type PurchaseResult struct {
	Membership *models.Membership
	User       *models.User
	// Renewal is true when an existing active membership was extended.
	Renewal    bool
	Duplicate  bool
	InviteLink string
	Notify     types.NotifyOutcome
}

// CreateOrExtend applies one successful payment to the (user, channel) pair.
// A first payment creates the membership with expiry = now + duration; a
// renewal extends it from max(now, current expiry), so remaining time is never
// lost and a lapsed renewal counts from the renewal moment. The payment
// append and the user's spend/tier update commit atomically with the
// membership change.
func (s *Service) CreateOrExtend(ctx context.Context, p PurchaseParams) (*PurchaseResult, error) {
	if p.Plan == nil {
		return nil, ErrUnknownPlan
	}
	if p.ChannelID == "" {
		return nil, fmt.Errorf("channel id is empty")
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	providerPaymentID := p.ProviderPaymentID
	if providerPaymentID == "" {
		providerPaymentID = "inner_" + tool.GenerateUUIDV7()
	}

	res := &PurchaseResult{Notify: types.NotifySkipped}

	err := s.store.Transact(ctx, func(tx Store) error {
		// Gateway retries re-deliver the same payment id; the second
		// application must not double-extend.
		if existing, err := tx.PaymentByProviderID(ctx, providerPaymentID); err == nil && existing != nil {
			res.Duplicate = true
			m, err := tx.GetMembership(ctx, existing.MembershipID)
			if err != nil {
				return fmt.Errorf("failed to load membership for duplicate payment: %w", err)
			}
			res.Membership = m
			return nil
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to check duplicate payment: %w", err)
		}

		user, err := tx.EnsureUser(ctx, p.TelegramID, p.Username, p.FirstName)
		if err != nil {
			return fmt.Errorf("failed to ensure user: %w", err)
		}

		m, err := tx.ActiveMembership(ctx, user.ID, p.ChannelID)
		switch {
		case err == nil:
			res.Renewal = true
			s.extend(m, p.Plan, now)
		case errors.Is(err, ErrNotFound):
			m = s.newMembership(user.ID, p.ChannelID, p.Plan, now)
		default:
			return fmt.Errorf("failed to load active membership: %w", err)
		}

		user.TotalSpentMinor += p.AmountMinor
		user.Tier = s.tierFor(user.TotalSpentMinor)
		user.Status = types.UserStatusActive
		m.TierAtPurchase = user.Tier

		if err := tx.SaveMembership(ctx, m); err != nil {
			return fmt.Errorf("failed to save membership: %w", err)
		}
		if err := tx.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}
		if err := tx.CreatePayment(ctx, &models.Payment{
			ID:                tool.GenerateUUIDV7(),
			UserID:            user.ID,
			MembershipID:      m.ID,
			PlanID:            p.Plan.ID,
			ProviderPaymentID: providerPaymentID,
			AmountMinor:       p.AmountMinor,
			Currency:          p.Currency,
			PaidAt:            now,
		}); err != nil {
			return fmt.Errorf("failed to append payment: %w", err)
		}

		res.Membership = m
		res.User = user
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply purchase: %w", err)
	}

	if res.Duplicate {
		logctx.FromCtx(ctx, s.log).Infow("duplicate_payment_ignored",
			"provider_payment_id", providerPaymentID)
		return res, nil
	}

	logctx.FromCtx(ctx, s.log).Infow("membership_applied",
		"membership_id", res.Membership.ID,
		"plan_id", p.Plan.ID,
		"renewal", res.Renewal,
		"reason", p.Reason)

	s.deliverInvite(ctx, res, p, now)
	return res, nil
}

// deliverInvite issues a fresh single-use invite link and messages the user.
// Best-effort: the membership is already committed.
func (s *Service) deliverInvite(ctx context.Context, res *PurchaseResult, p PurchaseParams, now time.Time) {
	ch, err := s.store.GetChannel(ctx, p.ChannelID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("invite_channel_lookup_failed", "channel_id", p.ChannelID, "err", err)
		res.Notify = types.NotifyFailed
		return
	}

	link, err := s.msgr.CreateInviteLink(ctx, ch.ChatID, now.Add(24*time.Hour))
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("invite_link_failed", "chat_id", ch.ChatID, "err", err)
		res.Notify = types.NotifyFailed
		return
	}
	res.InviteLink = link

	text := purchaseText(ch.Title, res.Membership, res.Renewal, link)
	if err := s.msgr.SendMessage(ctx, p.TelegramID, text); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("purchase_notify_failed", "telegram_id", p.TelegramID, "err", err)
		res.Notify = types.NotifyFailed
		return
	}
	res.Notify = types.NotifySent
}

func (s *Service) newMembership(userID, channelID string, plan *types.Plan, now time.Time) *models.Membership {
	m := &models.Membership{
		ID:           tool.GenerateUUIDV7(),
		UserID:       userID,
		ChannelID:    channelID,
		PlanID:       plan.ID,
		DurationDays: plan.DurationDays,
		StartDate:    now,
		IsActive:     true,
	}
	if plan.DurationDays != nil {
		exp := now.Add(time.Duration(*plan.DurationDays) * 24 * time.Hour)
		m.ExpiryDate = &exp
	}
	return m
}

// extend moves the expiry forward and starts a fresh reminder cycle.
func (s *Service) extend(m *models.Membership, plan *types.Plan, now time.Time) {
	m.PlanID = plan.ID
	m.Reminded3d = false
	m.Reminded1d = false
	m.IsActive = true

	if plan.DurationDays == nil || m.ExpiryDate == nil {
		// Upgrading to lifetime, or extending a lifetime membership: the
		// record stops expiring either way.
		m.DurationDays = nil
		m.ExpiryDate = nil
		return
	}

	base := now
	if m.ExpiryDate.After(now) {
		base = *m.ExpiryDate
	}
	exp := base.Add(time.Duration(*plan.DurationDays) * 24 * time.Hour)
	m.ExpiryDate = &exp
	m.DurationDays = plan.DurationDays
}

func purchaseText(channelTitle string, m *models.Membership, renewal bool, link string) string {
	if m.ExpiryDate == nil {
		return fmt.Sprintf("Your lifetime access to %s is active.\nJoin here: %s", channelTitle, link)
	}
	verb := "activated"
	if renewal {
		verb = "extended"
	}
	return fmt.Sprintf("Your access to %s is %s until %s.\nJoin here: %s",
		channelTitle, verb, m.ExpiryDate.Format("02 Jan 2006"), link)
}
