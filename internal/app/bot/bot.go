package bot

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/clubgate/clubgate/internal/app/service/membership"
	"github.com/clubgate/clubgate/internal/app/store"
	"github.com/clubgate/clubgate/internal/platform/gateway"
	"github.com/clubgate/clubgate/pkg/config"
)

// Service is the Telegram front door: plan browsing, checkout links, status,
// upgrade decisions and admin grants. All persistent state lives in the
// store; the handlers themselves are stateless.
type Service struct {
	cfg    *config.Config
	bot    *tgbot.Bot
	engine *membership.Service
	store  *store.GormStore
	links  gateway.LinkCreator
	log    *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(cfg *config.Config, b *tgbot.Bot, engine *membership.Service, gs *store.GormStore, links gateway.LinkCreator, log *zap.SugaredLogger) *Service {
	return &Service{
		cfg:    cfg,
		bot:    b,
		engine: engine,
		store:  gs,
		links:  links,
		log:    log,
		done:   make(chan struct{}),
	}
}

var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.registerHandlers()
			runCtx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			go func() {
				defer close(s.done)
				s.log.Infow("bot_polling_started")
				s.bot.Start(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if s.cancel != nil {
				s.cancel()
			}
			select {
			case <-s.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})
}

func (s *Service) registerHandlers() {
	s.bot.RegisterHandlerMatchFunc(func(u *tgmodels.Update) bool {
		return u.Message != nil
	}, s.handleMessage)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, "", tgbot.MatchTypePrefix, s.handleCallback)
}

func (s *Service) isAdmin(telegramID int64) bool {
	for _, id := range s.cfg.Telegram.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
