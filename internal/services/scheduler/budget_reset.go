// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/orangecat-xyz/autorouter/internal/services/budget"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// BudgetResetScheduler periodically applies scheduled API key budget resets.
type BudgetResetScheduler struct {
	budgetService *budget.Service
	interval      time.Duration
	stopChan      chan struct{}
}

func NewBudgetResetScheduler(budgetService *budget.Service, interval time.Duration) *BudgetResetScheduler {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &BudgetResetScheduler{
		budgetService: budgetService,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start blocks, processing resets on each tick until Stop or ctx cancel.
func (s *BudgetResetScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	fiberlog.Infof("Budget reset scheduler started, running every %s", s.interval)

	for {
		select {
		case <-ticker.C:
			if err := s.budgetService.ProcessScheduledBudgetResets(ctx); err != nil {
				fiberlog.Errorf("Error processing scheduled budget resets: %v", err)
			} else {
				fiberlog.Debug("Processed scheduled budget resets")
			}
		case <-s.stopChan:
			fiberlog.Info("Budget reset scheduler stopped")
			return
		case <-ctx.Done():
			fiberlog.Info("Budget reset scheduler stopped, context cancelled")
			return
		}
	}
}

func (s *BudgetResetScheduler) Stop() {
	close(s.stopChan)
}
