package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/clubgate/clubgate/internal/app/api/server"
	"github.com/clubgate/clubgate/internal/app/bot"
	"github.com/clubgate/clubgate/internal/app/service/intake"
	"github.com/clubgate/clubgate/internal/app/service/membership"
	"github.com/clubgate/clubgate/internal/app/service/stats"
	"github.com/clubgate/clubgate/internal/app/service/sweep"
	"github.com/clubgate/clubgate/internal/app/service/webhooklog"
	"github.com/clubgate/clubgate/internal/app/store"
	"github.com/clubgate/clubgate/internal/platform/db"
	"github.com/clubgate/clubgate/internal/platform/gateway"
	"github.com/clubgate/clubgate/internal/platform/telegram"
	"github.com/clubgate/clubgate/pkg/config"
	"github.com/clubgate/clubgate/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	store.Module,
	telegram.Module,
	gateway.Module,
	membership.Module,
	webhooklog.Module,
	intake.Module,
	stats.Module,
	sweep.Module,
	server.Module,
	bot.Module,
)
