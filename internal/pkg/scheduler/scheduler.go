package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/itbfess/ITBFess/internal/pkg/payment"
	"github.com/itbfess/ITBFess/internal/pkg/quota"
)

// staleUnpaidAge is how old an UNPAID transaction may get before the hourly
// sweep writes it off.
const staleUnpaidAge = 24 * time.Hour

// Scheduler runs the periodic maintenance jobs: the midnight daily-counter
// reset and the hourly stale-transaction sweep.
type Scheduler struct {
	cron      *cron.Cron
	ledger    *quota.Ledger
	payments  *payment.Service
	mu        sync.Mutex
	isRunning bool
}

// New creates a scheduler over the injected services.
func New(ledger *quota.Ledger, payments *payment.Service) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		ledger:   ledger,
		payments: payments,
	}
}

// Start registers and starts the cron jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if _, err := s.cron.AddFunc("0 0 * * *", s.resetDailyCounter); err != nil {
		return fmt.Errorf("failed to add reset job: %w", err)
	}
	if _, err := s.cron.AddFunc("0 * * * *", s.sweepStale); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	logrus.Info("scheduler started: daily reset at midnight, hourly stale sweep")
	return nil
}

// Stop halts the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	logrus.Info("scheduler stopped")
}

func (s *Scheduler) resetDailyCounter() {
	if err := s.ledger.ResetToday(); err != nil {
		logrus.Errorf("scheduler: daily counter reset failed: %v", err)
		return
	}
	logrus.Info("scheduler: daily counter reset")
}

func (s *Scheduler) sweepStale() {
	expired, err := s.payments.ExpireStale(staleUnpaidAge)
	if err != nil {
		logrus.Errorf("scheduler: stale sweep failed: %v", err)
		return
	}
	if expired > 0 {
		logrus.Infof("scheduler: expired %d stale unpaid transaction(s)", expired)
	}
}
