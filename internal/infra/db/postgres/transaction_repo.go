package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, subscription_id, provider, external_ref, status, amount, currency, meta, processed_at, created_at, updated_at`

// Create relies on the (provider, external_ref) unique index: a conflicting
// insert affects zero rows and surfaces as ErrDuplicateTransaction, so a
// second attempt with the same provider reference never reaches the ledger.
func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	const q = `
INSERT INTO payment_transactions (
  id, subscription_id, provider, external_ref, status, amount, currency, meta, processed_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (provider, external_ref) DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q, t.ID, t.SubscriptionID, t.Provider, t.ExternalRef, t.Status, t.Amount, t.Currency, t.Meta, t.ProcessedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateTransaction
	}
	return nil
}

func (r *transactionRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, provider model.Provider, externalRef string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE provider=$1 AND external_ref=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, provider, externalRef)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *transactionRepo) FindLatestPendingBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string, provider model.Provider) (*model.PaymentTransaction, error) {
	const q = `
SELECT ` + transactionColumns + ` FROM payment_transactions
WHERE subscription_id=$1 AND provider=$2 AND status='pending'
ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID, provider)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

// MarkCompleted is the idempotency gate: the status guard in the WHERE clause
// means exactly one caller wins the pending -> completed transition, however
// many verify calls and webhook deliveries race for it. Meta is merged so the
// webhook payload snapshot lands next to the initiation data.
func (r *transactionRepo) MarkCompleted(ctx context.Context, tx repository.Tx, provider model.Provider, externalRef string, payload map[string]any) (bool, error) {
	const q = `
UPDATE payment_transactions
SET status='completed', processed_at=NOW(),
    meta = meta || COALESCE($3::jsonb, '{}'::jsonb), updated_at=NOW()
WHERE provider=$1 AND external_ref=$2 AND status <> 'completed';`
	tag, err := execSQL(ctx, r.pool, tx, q, provider, externalRef, wrapPayload(payload))
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *transactionRepo) MarkFailed(ctx context.Context, tx repository.Tx, provider model.Provider, externalRef string, payload map[string]any) (bool, error) {
	const q = `
UPDATE payment_transactions
SET status='failed', processed_at=NOW(),
    meta = meta || COALESCE($3::jsonb, '{}'::jsonb), updated_at=NOW()
WHERE provider=$1 AND external_ref=$2 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, provider, externalRef, wrapPayload(payload))
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.PaymentTransaction, error) {
	const q = `
SELECT ` + transactionColumns + ` FROM payment_transactions
WHERE status='pending' AND created_at < $1
ORDER BY created_at ASC LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// wrapPayload renders the webhook snapshot as a jsonb fragment for the merge;
// nil stays NULL so COALESCE keeps the meta untouched.
func wrapPayload(payload map[string]any) interface{} {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(map[string]any{"webhook_payload": payload})
	if err != nil {
		return nil
	}
	return string(b)
}

func scanTransaction(row pgx.Row) (*model.PaymentTransaction, error) {
	t := &model.PaymentTransaction{}
	err := row.Scan(&t.ID, &t.SubscriptionID, &t.Provider, &t.ExternalRef, &t.Status, &t.Amount, &t.Currency, &t.Meta, &t.ProcessedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}
