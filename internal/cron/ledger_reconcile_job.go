package cron

import (
	"context"
	"fmt"

	"github.com/hotmess/hotmess-backend/internal/ledger"
	"github.com/hotmess/hotmess-backend/pkg/logger"
)

const driftScanLimit = 100

type driftFinder interface {
	FindDrift(ctx context.Context, limit int) ([]ledger.Drift, error)
}

// NewLedgerReconcileJob reports wallets whose balance disagrees with the sum
// of their ledger entries. It never corrects anything.
func NewLedgerReconcileJob(finder driftFinder, logg *logger.Logger) (Job, error) {
	if finder == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ledgerReconcileJob{finder: finder, logg: logg}, nil
}

type ledgerReconcileJob struct {
	finder driftFinder
	logg   *logger.Logger
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) (int, error) {
	drift, err := j.finder.FindDrift(ctx, driftScanLimit)
	if err != nil {
		return 0, err
	}
	for _, d := range drift {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"user_id":    d.UserID.String(),
			"currency":   string(d.Currency),
			"balance":    d.Balance,
			"ledger_sum": d.LedgerSum,
		}), "wallet balance drifted from ledger")
	}
	return len(drift), nil
}
