package repository

import (
	"context"
	"time"

	"restaurant-pos-billing/internal/domain/model"
)

type TransactionRepository interface {
	// Create appends a ledger row. A row with the same (provider,
	// external_ref) already present yields domain.ErrDuplicateTransaction.
	Create(ctx context.Context, tx Tx, t *model.PaymentTransaction) error
	FindByProviderRef(ctx context.Context, tx Tx, provider model.Provider, externalRef string) (*model.PaymentTransaction, error)
	// FindLatestPendingBySubscription returns the newest pending attempt on
	// the given provider, used by the OTP confirm fallback.
	FindLatestPendingBySubscription(ctx context.Context, tx Tx, subscriptionID string, provider model.Provider) (*model.PaymentTransaction, error)
	// MarkCompleted atomically transitions pending -> completed, stamping
	// processed_at and merging payload into meta. Returns false when the row
	// was already completed (idempotent re-delivery) and does not touch it.
	MarkCompleted(ctx context.Context, tx Tx, provider model.Provider, externalRef string, payload map[string]any) (bool, error)
	// MarkFailed transitions pending -> failed; like MarkCompleted it reports
	// whether a row actually changed so callers can tell replays apart.
	MarkFailed(ctx context.Context, tx Tx, provider model.Provider, externalRef string, payload map[string]any) (bool, error)
	// ListPendingOlderThan feeds the reconciliation sweep.
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.PaymentTransaction, error)
}
