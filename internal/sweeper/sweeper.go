// Package sweeper runs the date-driven batch transitions: overdue loans
// default, overdue invoices flip to OVERDUE. Both sweeps are idempotent,
// so an overlapping or repeated run is harmless.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bankcore/internal/app/invoices"
	"bankcore/internal/app/loans"
)

type Sweeper struct {
	loans    loans.LoanService
	invoices invoices.InvoiceService
	interval time.Duration
	logger   *zap.Logger
}

func New(loanSvc loans.LoanService, invoiceSvc invoices.InvoiceService, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		loans:    loanSvc,
		invoices: invoiceSvc,
		interval: interval,
		logger:   logger,
	}
}

// Start sweeps once immediately and then on every tick until ctx is
// cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting overdue sweeper...", zap.Duration("interval", s.interval))

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Overdue sweeper stopped.")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now()

	if _, err := s.loans.SweepOverdue(ctx, now); err != nil {
		s.logger.Error("Loan overdue sweep failed", zap.Error(err))
	}
	if _, err := s.invoices.SweepOverdue(ctx, now); err != nil {
		s.logger.Error("Invoice overdue sweep failed", zap.Error(err))
	}
}
