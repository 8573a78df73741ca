package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// HoldSweeper expires lapsed seat holds
type HoldSweeper interface {
	ExpireLapsedHolds(ctx context.Context, limit int) (int, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron      *cron.Cron
	sweeper   HoldSweeper
	schedule  string
	batchSize int
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewCronService creates a new CronService.
// schedule accepts six-field cron specs and descriptors such as "@every 1m".
func NewCronService(sweeper HoldSweeper, schedule string, batchSize int, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:      cron.New(cron.WithSeconds()),
		sweeper:   sweeper,
		schedule:  schedule,
		batchSize: batchSize,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.expireHoldsJob); err != nil {
		return fmt.Errorf("failed to schedule hold expiry job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: expire lapsed seat holds")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) expireHoldsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunExpireHoldsNow(ctx); err != nil {
		s.logger.WithError(err).Error("[CRON] Hold expiry job failed")
	}
}

// RunExpireHoldsNow runs the hold expiry job immediately
func (s *CronService) RunExpireHoldsNow(ctx context.Context) (int, error) {
	start := time.Now()
	expired, err := s.sweeper.ExpireLapsedHolds(ctx, s.batchSize)
	if err != nil {
		return expired, err
	}
	if expired > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":  expired,
			"duration": time.Since(start).String(),
		}).Info("[CRON] Expired lapsed seat holds")
	}
	return expired, nil
}
