// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/subscription-tracker/pkg/metrics"
	"github.com/FACorreiaa/subscription-tracker/pkg/storage"
)

// DefaultSweepSchedule runs the retention sweep daily at 3:00 AM.
const DefaultSweepSchedule = "0 3 * * *"

// Sweeper deletes stored files created before a cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

var _ Sweeper = (storage.Storage)(nil)

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	uploads   Sweeper
	retention time.Duration
	schedule  string
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a job scheduler that removes statement uploads older
// than retention. m may be nil.
func NewScheduler(uploads Sweeper, retention time.Duration, schedule string, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	// Standard 5-field format, seconds disabled
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Scheduler{
		cron:      c,
		uploads:   uploads,
		retention: retention,
		schedule:  schedule,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.sweepUploads)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("sweep_schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// SweepOnce removes uploads older than the retention window.
func (s *Scheduler) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.uploads.Sweep(ctx, cutoff)
	if s.metrics != nil && removed > 0 {
		s.metrics.UploadsSwept.Add(float64(removed))
	}
	return removed, err
}

func (s *Scheduler) sweepUploads() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info("starting upload retention sweep")

	removed, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.Error("upload retention sweep failed",
			slog.Int("files_removed", removed),
			slog.Any("error", err),
		)
		return
	}

	s.logger.Info("upload retention sweep completed",
		slog.Int("files_removed", removed),
	)
}
