package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/clubgate/clubgate/internal/app/service/membership"
	models "github.com/clubgate/clubgate/internal/models"
	"github.com/clubgate/clubgate/pkg/types"
)

func (s *Service) handleCallback(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	telegramID := cq.From.ID
	data := cq.Data

	// Always answer, otherwise the client keeps the button spinner running.
	defer func() {
		_, _ = b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})
	}()

	switch {
	case strings.HasPrefix(data, "buy_"):
		s.handleBuy(ctx, telegramID, cq.From.Username, cq.From.FirstName, strings.TrimPrefix(data, "buy_"))
	case strings.HasPrefix(data, "ups_acc_"):
		s.handleUpsellDecision(ctx, telegramID, cq.From.Username, cq.From.FirstName, strings.TrimPrefix(data, "ups_acc_"), true)
	case strings.HasPrefix(data, "ups_dec_"):
		s.handleUpsellDecision(ctx, telegramID, cq.From.Username, cq.From.FirstName, strings.TrimPrefix(data, "ups_dec_"), false)
	default:
		s.log.Warnw("unknown_callback", "telegram_id", telegramID, "data", data)
	}
}

func (s *Service) handleBuy(ctx context.Context, telegramID int64, username, firstName, planID string) {
	url, err := s.checkoutLink(ctx, telegramID, username, firstName, planID, 0)
	if errors.Is(err, membership.ErrUnknownPlan) {
		s.reply(ctx, telegramID, "That plan is no longer on sale. See /plans.")
		return
	}
	if err != nil {
		s.log.Errorw("checkout_link_failed", "telegram_id", telegramID, "plan_id", planID, "err", err)
		s.reply(ctx, telegramID, "Could not create a payment link, please try again later.")
		return
	}
	s.reply(ctx, telegramID, "Pay here: "+url+"\nAccess is granted automatically after payment.")
}

func (s *Service) handleUpsellDecision(ctx context.Context, telegramID int64, username, firstName, attemptID string, accepted bool) {
	// Callback data is client-supplied; only the offer's owner may decide it.
	user, err := s.store.UserByTelegramID(ctx, telegramID)
	if err != nil {
		s.reply(ctx, telegramID, "No offer found for your account.")
		return
	}
	existing, err := s.store.GetUpsellAttempt(ctx, attemptID)
	if err != nil || !attemptOwnedBy(existing, user) {
		s.log.Warnw("upsell_decision_rejected", "telegram_id", telegramID, "attempt_id", attemptID)
		s.reply(ctx, telegramID, "No offer found for your account.")
		return
	}

	attempt, err := s.engine.DecideUpsell(ctx, attemptID, accepted, time.Now())
	if errors.Is(err, membership.ErrAlreadyDecided) {
		s.reply(ctx, telegramID, "This offer was already decided.")
		return
	}
	if err != nil {
		s.log.Errorw("upsell_decision_failed", "attempt_id", attemptID, "err", err)
		s.reply(ctx, telegramID, "Something went wrong, please try again later.")
		return
	}

	if !accepted {
		s.reply(ctx, telegramID, "No problem, your current plan stays as is.")
		return
	}

	// Accepting routes through the normal checkout: the capture webhook
	// extends the membership onto the longer plan at the offered price.
	renewID := types.RenewPlanID(attempt.MembershipID, attempt.ToPlanID)
	url, err := s.checkoutLink(ctx, telegramID, username, firstName, renewID, attempt.PriceMinor)
	if err != nil {
		s.log.Errorw("upsell_checkout_failed", "attempt_id", attemptID, "err", err)
		s.reply(ctx, telegramID, "Could not create a payment link, please try again later.")
		return
	}
	s.reply(ctx, telegramID, fmt.Sprintf("Great! Pay %s here: %s",
		formatMoney(attempt.PriceMinor, s.cfg.Gateway.Currency), url))
}

func attemptOwnedBy(a *models.UpsellAttempt, u *models.User) bool {
	return a != nil && u != nil && a.UserID == u.ID
}
