package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Default lifecycle schedules, seconds precision.
const (
	DefaultDeactivateSchedule = "0 0 0 1 1,6 *"
	DefaultGraduateSchedule   = "0 0 0 1 1 *"
)

type lifecycleRunner interface {
	DeactivateDelinquent(ctx context.Context) (int64, error)
	PromoteGraduates(ctx context.Context) (int, error)
}

// SchedulerConfig holds cron expressions for the lifecycle jobs.
type SchedulerConfig struct {
	DeactivateSchedule string
	GraduateSchedule   string
	Timeout            time.Duration
}

// Scheduler runs student lifecycle jobs on cron schedules.
type Scheduler struct {
	cron      *cron.Cron
	lifecycle lifecycleRunner
	logger    *zap.Logger
	cfg       SchedulerConfig
}

// NewScheduler builds a scheduler; Start registers and launches the jobs.
func NewScheduler(lifecycle lifecycleRunner, logger *zap.Logger, cfg SchedulerConfig) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeactivateSchedule == "" {
		cfg.DeactivateSchedule = DefaultDeactivateSchedule
	}
	if cfg.GraduateSchedule == "" {
		cfg.GraduateSchedule = DefaultGraduateSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		lifecycle: lifecycle,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.DeactivateSchedule, func() { s.run("deactivate_delinquent", s.deactivate) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.GraduateSchedule, func() { s.run("promote_graduates", s.graduate) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("deactivate", s.cfg.DeactivateSchedule),
		zap.String("graduate", s.cfg.GraduateSchedule),
	)
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) deactivate(ctx context.Context) error {
	_, err := s.lifecycle.DeactivateDelinquent(ctx)
	return err
}

func (s *Scheduler) graduate(ctx context.Context) error {
	_, err := s.lifecycle.PromoteGraduates(ctx)
	return err
}

func (s *Scheduler) run(name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	started := time.Now()
	s.logger.Info("cron job started", zap.String("job", name))
	if err := job(ctx); err != nil {
		s.logger.Error("cron job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Info("cron job finished", zap.String("job", name), zap.Duration("duration", time.Since(started)))
}
