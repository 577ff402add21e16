package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/clubgate/clubgate/internal/app/service/membership"
	"github.com/clubgate/clubgate/internal/app/service/stats"
	"github.com/clubgate/clubgate/internal/app/store"
	"github.com/clubgate/clubgate/pkg/config"
	"github.com/clubgate/clubgate/pkg/metrics"
)

// ErrUnknownJob is returned by RunOnce for a job name nothing is scheduled under.
var ErrUnknownJob = errors.New("unknown sweep job")

var sweepRuns = &metrics.Metric{
	ID:          "sweepRuns",
	Name:        "sweep_runs_total",
	Description: "Completed sweep runs partitioned by job and outcome.",
	Type:        "counter_vec",
	Args:        []string{"job", "outcome"},
}

var sweepProcessed = &metrics.Metric{
	ID:          "sweepProcessed",
	Name:        "sweep_processed_total",
	Description: "Records acted on by sweeps, partitioned by job.",
	Type:        "counter_vec",
	Args:        []string{"job"},
}

// Runner schedules the periodic lifecycle sweeps. Every run recomputes its
// candidate set from the store, so a missed tick is caught up by the next one.
type Runner struct {
	cfg    *config.Config
	engine *membership.Service
	stats  *stats.Service
	store  *store.GormStore
	log    *zap.SugaredLogger

	cron      *cron.Cron
	runs      *prometheus.CounterVec
	processed *prometheus.CounterVec
}

func NewRunner(cfg *config.Config, engine *membership.Service, st *stats.Service, gs *store.GormStore, log *zap.SugaredLogger) *Runner {
	r := &Runner{
		cfg:    cfg,
		engine: engine,
		stats:  st,
		store:  gs,
		log:    log,
		cron:   cron.New(),
	}
	r.runs = metrics.NewMetric(sweepRuns, "sweep").(*prometheus.CounterVec)
	r.processed = metrics.NewMetric(sweepProcessed, "sweep").(*prometheus.CounterVec)
	for _, c := range []prometheus.Collector{r.runs, r.processed} {
		if err := prometheus.Register(c); err != nil {
			log.Errorf("failed to register sweep metric: %v", err)
		}
	}
	return r
}

var Module = fx.Options(
	fx.Provide(NewRunner),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, r *Runner) error {
	if err := r.schedule(); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.cron.Start()
			r.log.Infow("sweep_scheduler_started",
				"expiry", r.cfg.Sweeps.ExpirySpec,
				"reminder", r.cfg.Sweeps.ReminderSpec,
				"upsell", r.cfg.Sweeps.UpsellSpec)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := r.cron.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})
	return nil
}

func (r *Runner) schedule() error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context, time.Time) (int, error)
	}{
		{r.cfg.Sweeps.ExpirySpec, "expiry", r.runExpiry},
		{r.cfg.Sweeps.ReminderSpec, "reminder", r.runReminders},
		{r.cfg.Sweeps.UpsellSpec, "upsell", r.runUpsell},
	}
	for _, j := range jobs {
		j := j
		if _, err := r.cron.AddFunc(j.spec, func() { r.runJob(j.name, j.run) }); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runJob(name string, run func(context.Context, time.Time) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = context.WithValue(ctx, "job", name)

	start := time.Now()
	n, err := run(ctx, start)
	if err != nil {
		r.runs.WithLabelValues(name, "error").Inc()
		r.log.Errorw("sweep_failed", "job", name, "err", err)
		return
	}
	r.runs.WithLabelValues(name, "ok").Inc()
	r.processed.WithLabelValues(name).Add(float64(n))
	r.log.Infow("sweep_done", "job", name, "processed", n, "dur_ms", metrics.MillisecondsSince(start))
}

func (r *Runner) runExpiry(ctx context.Context, asOf time.Time) (int, error) {
	results, err := r.engine.ExpireDue(ctx, asOf)
	return len(results), err
}

func (r *Runner) runReminders(ctx context.Context, asOf time.Time) (int, error) {
	results, err := r.engine.SendDueReminders(ctx, asOf)
	return len(results), err
}

// runUpsell is the daily housekeeping slot; it also rolls the membership
// snapshot and drops abandoned bot conversations.
func (r *Runner) runUpsell(ctx context.Context, asOf time.Time) (int, error) {
	if err := r.stats.WriteDailySnapshots(ctx, asOf); err != nil {
		r.log.Errorw("daily_snapshot_failed", "err", err)
	}
	if purged, err := r.store.PurgeExpiredConversationState(ctx, asOf); err != nil {
		r.log.Errorw("conversation_purge_failed", "err", err)
	} else if purged > 0 {
		r.log.Infow("conversation_state_purged", "count", purged)
	}

	results, err := r.engine.OfferUpsells(ctx, asOf)
	return len(results), err
}

// RunOnce triggers one named sweep immediately. Used by the admin API.
func (r *Runner) RunOnce(ctx context.Context, name string) (int, error) {
	asOf := time.Now()
	switch name {
	case "expiry":
		return r.runExpiry(ctx, asOf)
	case "reminder":
		return r.runReminders(ctx, asOf)
	case "upsell":
		return r.runUpsell(ctx, asOf)
	default:
		return 0, ErrUnknownJob
	}
}
