package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
	"restaurant-pos-billing/internal/domain/ports/repository"
	"restaurant-pos-billing/internal/infra/metrics"
	"restaurant-pos-billing/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending transactions and
// re-queries the provider for their real status. This covers the cases where
// a webhook was never delivered or the process crashed mid-confirm.
type PaymentReconciler struct {
	uc           usecase.PaymentUseCase
	transactions repository.TransactionRepository
	interval     time.Duration // how often to scan
	staleAfter   time.Duration // how old a pending transaction must be to retry
	log          *zerolog.Logger
}

func NewPaymentReconciler(
	uc usecase.PaymentUseCase,
	transactions repository.TransactionRepository,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{uc: uc, transactions: transactions, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.transactions.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list pending failed")
		return
	}
	for _, txn := range pending {
		w.reconcile(ctx, txn)
	}
}

func (w *PaymentReconciler) reconcile(ctx context.Context, txn *model.PaymentTransaction) {
	logger := w.log.With().Str("transaction_id", txn.ID).Str("provider", string(txn.Provider)).
		Str("external_ref", txn.ExternalRef).Logger()

	switch txn.Provider {
	case model.ProviderCash:
		// Cash waits for a human, never reconciled automatically.
		return
	case model.ProviderStripe:
		paid, err := w.uc.VerifyCardSession(ctx, txn.ExternalRef)
		if err != nil {
			logger.Warn().Err(err).Msg("reconciler: card session query failed")
			return
		}
		if !paid {
			metrics.IncPaymentReconciled(string(txn.Provider), "pending")
			return
		}
		metrics.IncPaymentReconciled(string(txn.Provider), "completed")
		logger.Info().Msg("reconciler: card transaction settled")
	case model.ProviderOrangeMoney, model.ProviderAirtelMoney:
		outcome, err := w.uc.VerifyMobileMoney(ctx, txn.Provider, txn.ExternalRef)
		if err != nil {
			logger.Warn().Err(err).Msg("reconciler: provider query failed")
			return
		}
		switch outcome {
		case adapter.VerifyCompleted:
			metrics.IncPaymentReconciled(string(txn.Provider), "completed")
			logger.Info().Msg("reconciler: mobile money transaction settled")
		case adapter.VerifyFailed:
			metrics.IncPaymentReconciled(string(txn.Provider), "failed")
			logger.Info().Msg("reconciler: mobile money transaction failed")
		default:
			metrics.IncPaymentReconciled(string(txn.Provider), "pending")
		}
	}
}
