package sweep

import (
	"context"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clubgate/clubgate/pkg/config"
)

func TestDefaultSweepSpecsParse(t *testing.T) {
	specs := []string{"0 * * * *", "0 9,18 * * *", "30 10 * * *"}
	for _, spec := range specs {
		_, err := cron.ParseStandard(spec)
		assert.NoErrorf(t, err, "spec %q", spec)
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	r := &Runner{
		cfg: &config.Config{
			Sweeps: config.SweepConfig{
				ExpirySpec:   "not a cron spec",
				ReminderSpec: "0 9 * * *",
				UpsellSpec:   "30 10 * * *",
			},
		},
		log:  zap.NewNop().Sugar(),
		cron: cron.New(),
	}
	require.Error(t, r.schedule())
}

func TestRunOnceUnknownJob(t *testing.T) {
	r := &Runner{log: zap.NewNop().Sugar()}
	_, err := r.RunOnce(context.Background(), "defrag")
	require.ErrorIs(t, err, ErrUnknownJob)
}
