package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/clubgate/clubgate/internal/app/service/membership"
	"github.com/clubgate/clubgate/pkg/config"
)

const apiCallTimeout = 10 * time.Second

// NewBot builds the Telegram client. Long polling needs an HTTP client that
// outlives the poll timeout.
func NewBot(cfg *config.Config) (*bot.Bot, error) {
	httpClient := &http.Client{
		Timeout: 10 * time.Minute,
	}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		cfg.Telegram.Token,
		bot.WithHTTPClient(pollTimeout, httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

// Messenger implements the lifecycle engine's messaging collaborator on the
// Bot API. Every call is bounded by its own timeout.
type Messenger struct {
	bot *bot.Bot
	log *zap.SugaredLogger
}

func NewMessenger(b *bot.Bot, log *zap.SugaredLogger) *Messenger {
	return &Messenger{bot: b, log: log}
}

var Module = fx.Options(
	fx.Provide(NewBot),
	fx.Provide(NewMessenger),
	fx.Provide(func(m *Messenger) membership.Messenger { return m }),
)

// CreateInviteLink issues a single-use invite that expires on its own even if
// the payer never joins.
func (m *Messenger) CreateInviteLink(ctx context.Context, chatID int64, expireAt time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	link, err := m.bot.CreateChatInviteLink(ctx, &bot.CreateChatInviteLinkParams{
		ChatID:      chatID,
		ExpireDate:  int(expireAt.Unix()),
		MemberLimit: 1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create invite link for chat %d: %w", chatID, err)
	}
	return link.InviteLink, nil
}

func (m *Messenger) SendMessage(ctx context.Context, telegramID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	_, err := m.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: telegramID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %d: %w", telegramID, err)
	}
	return nil
}

// RevokeAccess kicks the member and lifts the ban right away, so the user can
// come back through a future invite link instead of staying banned.
func (m *Messenger) RevokeAccess(ctx context.Context, chatID, telegramID int64) error {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	if _, err := m.bot.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: chatID,
		UserID: telegramID,
	}); err != nil {
		return fmt.Errorf("failed to remove %d from chat %d: %w", telegramID, chatID, err)
	}
	if _, err := m.bot.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       telegramID,
		OnlyIfBanned: true,
	}); err != nil {
		m.log.Warnw("unban_after_kick_failed", "chat_id", chatID, "telegram_id", telegramID, "err", err)
	}
	return nil
}
