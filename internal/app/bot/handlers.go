package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gorm.io/datatypes"

	"github.com/clubgate/clubgate/internal/app/service/membership"
	"github.com/clubgate/clubgate/internal/platform/gateway"
	"github.com/clubgate/clubgate/pkg/types"
)

const (
	stateGrantAwaitArgs = "grant_await_args"

	conversationTTL = 10 * time.Minute
)

func (s *Service) handleMessage(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	telegramID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		s.handleCommand(ctx, telegramID, msg)
		return
	}

	state, err := s.store.GetConversationState(ctx, telegramID, time.Now())
	if err != nil {
		if !errors.Is(err, membership.ErrNotFound) {
			s.log.Errorw("conversation_state_lookup_failed", "telegram_id", telegramID, "err", err)
		}
		return
	}
	switch state.State {
	case stateGrantAwaitArgs:
		s.handleGrantArgs(ctx, telegramID, text)
	default:
		s.log.Warnw("unknown_conversation_state", "telegram_id", telegramID, "state", state.State)
		_ = s.store.ClearConversationState(ctx, telegramID)
	}
}

func (s *Service) handleCommand(ctx context.Context, telegramID int64, msg *tgmodels.Message) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	cmd := fields[0]
	if strings.Contains(cmd, "@") {
		cmd = strings.SplitN(cmd, "@", 2)[0]
	}

	switch cmd {
	case "/start":
		s.reply(ctx, telegramID,
			"Welcome! This bot sells access to private channels.\n\n"+
				"/plans - available subscriptions\n"+
				"/status - your current access\n"+
				"/upgrade - pending upgrade offer")
	case "/plans":
		s.sendPlans(ctx, telegramID)
	case "/status":
		s.sendStatus(ctx, telegramID)
	case "/upgrade":
		s.sendUpgradeOffer(ctx, telegramID)
	case "/grant":
		if !s.isAdmin(telegramID) {
			s.reply(ctx, telegramID, "Unknown command. Try /plans.")
			return
		}
		if err := s.store.PutConversationState(ctx, telegramID, stateGrantAwaitArgs, datatypes.JSON([]byte(`{}`)), conversationTTL); err != nil {
			s.log.Errorw("grant_state_save_failed", "err", err)
			return
		}
		s.reply(ctx, telegramID, "Send: <telegram_id> <plan_id>\nOr /cancel to abort.")
	case "/cancel":
		_ = s.store.ClearConversationState(ctx, telegramID)
		s.reply(ctx, telegramID, "Cancelled.")
	default:
		s.reply(ctx, telegramID, "Unknown command. Try /plans.")
	}
}

func (s *Service) sendPlans(ctx context.Context, telegramID int64) {
	if len(s.cfg.Plans) == 0 {
		s.reply(ctx, telegramID, "No plans are on sale right now.")
		return
	}

	var lines []string
	var rows [][]tgmodels.InlineKeyboardButton
	for _, p := range s.cfg.Plans {
		duration := "lifetime"
		if !p.Lifetime() {
			duration = fmt.Sprintf("%d days", *p.DurationDays)
		}
		lines = append(lines, fmt.Sprintf("%s - %s - %s", p.Title, duration, formatMoney(p.PriceMinor, p.Currency)))
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text:         p.Title,
			CallbackData: "buy_" + p.ID,
		}})
	}

	_, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      telegramID,
		Text:        strings.Join(lines, "\n"),
		ReplyMarkup: &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows},
	})
	if err != nil {
		s.log.Errorw("plans_send_failed", "telegram_id", telegramID, "err", err)
	}
}

func (s *Service) sendStatus(ctx context.Context, telegramID int64) {
	user, err := s.store.UserByTelegramID(ctx, telegramID)
	if errors.Is(err, membership.ErrNotFound) {
		s.reply(ctx, telegramID, "You have no subscriptions yet. See /plans.")
		return
	}
	if err != nil {
		s.log.Errorw("status_user_lookup_failed", "telegram_id", telegramID, "err", err)
		return
	}

	memberships, err := s.store.MembershipsForUser(ctx, user.ID)
	if err != nil {
		s.log.Errorw("status_memberships_failed", "user_id", user.ID, "err", err)
		return
	}

	now := time.Now()
	var lines []string
	var rows [][]tgmodels.InlineKeyboardButton
	for _, m := range memberships {
		if !m.IsActive {
			continue
		}
		ch, err := s.store.GetChannel(ctx, m.ChannelID)
		if err != nil {
			continue
		}
		if m.Lifetime() {
			lines = append(lines, fmt.Sprintf("%s: lifetime access", ch.Title))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %d days left (until %s)",
			ch.Title, m.DaysLeft(now), m.ExpiryDate.Format("02 Jan 2006")))
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text:         "Renew " + ch.Title,
			CallbackData: "buy_" + types.RenewPlanID(m.ID, m.PlanID),
		}})
	}
	if len(lines) == 0 {
		s.reply(ctx, telegramID, "You have no active subscriptions. See /plans.")
		return
	}
	lines = append(lines, fmt.Sprintf("\nTier: %s", user.Tier))

	params := &tgbot.SendMessageParams{ChatID: telegramID, Text: strings.Join(lines, "\n")}
	if len(rows) > 0 {
		params.ReplyMarkup = &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
	}
	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		s.log.Errorw("status_send_failed", "telegram_id", telegramID, "err", err)
	}
}

func (s *Service) sendUpgradeOffer(ctx context.Context, telegramID int64) {
	user, err := s.store.UserByTelegramID(ctx, telegramID)
	if err != nil {
		s.reply(ctx, telegramID, "No upgrade offers for you right now.")
		return
	}
	attempt, err := s.store.PendingUpsellForUser(ctx, user.ID)
	if err != nil {
		s.reply(ctx, telegramID, "No upgrade offers for you right now.")
		return
	}

	text := fmt.Sprintf("Upgrade from %d to %d days for %s (%d%% off).",
		attempt.FromDays, attempt.ToDays, formatMoney(attempt.PriceMinor, s.cfg.Gateway.Currency), attempt.DiscountPct)
	_, err = s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: telegramID,
		Text:   text,
		ReplyMarkup: &tgmodels.InlineKeyboardMarkup{InlineKeyboard: [][]tgmodels.InlineKeyboardButton{{
			{Text: "Accept", CallbackData: "ups_acc_" + attempt.ID},
			{Text: "Decline", CallbackData: "ups_dec_" + attempt.ID},
		}}},
	})
	if err != nil {
		s.log.Errorw("upgrade_offer_send_failed", "telegram_id", telegramID, "err", err)
	}
}

// handleGrantArgs finishes the admin grant flow: "<telegram_id> <plan_id>".
func (s *Service) handleGrantArgs(ctx context.Context, adminID int64, text string) {
	defer func() {
		_ = s.store.ClearConversationState(ctx, adminID)
	}()

	fields := strings.Fields(text)
	if len(fields) != 2 {
		s.reply(ctx, adminID, "Expected: <telegram_id> <plan_id>. Aborted.")
		return
	}
	targetID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || targetID == 0 {
		s.reply(ctx, adminID, fmt.Sprintf("Bad telegram id %q. Aborted.", fields[0]))
		return
	}
	plan := s.cfg.GetPlanByID(fields[1])
	if plan == nil {
		s.reply(ctx, adminID, fmt.Sprintf("Unknown plan %q. Aborted.", fields[1]))
		return
	}

	res, err := s.engine.CreateOrExtend(ctx, membership.PurchaseParams{
		TelegramID: targetID,
		ChannelID:  plan.ChannelID,
		Plan:       plan,
		Reason:     types.MembershipChangeReasonGrant,
		Now:        time.Now(),
	})
	if err != nil {
		s.log.Errorw("grant_failed", "admin_id", adminID, "target_id", targetID, "err", err)
		s.reply(ctx, adminID, "Grant failed: "+err.Error())
		return
	}

	until := "lifetime"
	if res.Membership.ExpiryDate != nil {
		until = res.Membership.ExpiryDate.Format("02 Jan 2006")
	}
	s.reply(ctx, adminID, fmt.Sprintf("Granted %s to %d, valid until %s. Invite: %s",
		plan.ID, targetID, until, res.Notify))
}

// checkoutLink builds a payment link for the given plan id, which may be a
// renewal id carrying the membership being extended.
func (s *Service) checkoutLink(ctx context.Context, telegramID int64, username, firstName, planID string, amountMinor int64) (string, error) {
	plan := s.resolvePlan(planID)
	if plan == nil {
		return "", membership.ErrUnknownPlan
	}
	if amountMinor <= 0 {
		amountMinor = plan.PriceMinor
	}
	link, err := s.links.CreatePaymentLink(ctx, gateway.LinkParams{
		AmountMinor: amountMinor,
		Description: plan.Title,
		TelegramID:  telegramID,
		PlanID:      planID,
		Username:    username,
		FirstName:   firstName,
	})
	if err != nil {
		return "", err
	}
	return link.ShortURL, nil
}

// resolvePlan accepts both plain and renewal plan ids.
func (s *Service) resolvePlan(planID string) *types.Plan {
	if _, underlying, ok := types.ParseRenewPlanID(planID); ok {
		planID = underlying
	}
	return s.cfg.GetPlanByID(planID)
}

func (s *Service) reply(ctx context.Context, telegramID int64, text string) {
	_, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: telegramID, Text: text})
	if err != nil {
		s.log.Errorw("reply_failed", "telegram_id", telegramID, "err", err)
	}
}

func formatMoney(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, currency)
}
