package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, restaurant_id, plan, monthly_amount, currency, payment_method, payment_state, status, active, otp_code, otp_expires_at, transaction_ref, notes, start_at, end_at, paid_at, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, restaurant_id, plan, monthly_amount, currency, payment_method, payment_state, status, active, otp_code, otp_expires_at, transaction_ref, notes, start_at, end_at, paid_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  plan=$3, monthly_amount=$4, currency=$5, payment_method=$6, payment_state=$7, status=$8, active=$9, otp_code=$10, otp_expires_at=$11, transaction_ref=$12, notes=$13, start_at=$14, end_at=$15, paid_at=$16, updated_at=$18;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.RestaurantID, s.Plan, s.MonthlyAmount, s.Currency, s.PaymentMethod, s.PaymentState, s.Status, s.Active, s.OTPCode, s.OTPExpiresAt, s.TransactionRef, s.Notes, s.StartAt, s.EndAt, s.PaidAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

// FindCurrentByRestaurant resolves through the restaurant's explicit pointer
// first; rows predating the pointer fall back to recency order (latest
// updated_at, then highest id).
func (r *subscriptionRepo) FindCurrentByRestaurant(ctx context.Context, tx repository.Tx, restaurantID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + ` FROM subscriptions s
WHERE s.id = (SELECT current_subscription_id FROM restaurants WHERE id=$1)
   OR (s.restaurant_id = $1
       AND (SELECT current_subscription_id FROM restaurants WHERE id=$1) IS NULL)
ORDER BY s.updated_at DESC, s.id DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, restaurantID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) SetPaymentMethod(ctx context.Context, tx repository.Tx, id string, method model.PaymentMethod) error {
	const q = `UPDATE subscriptions SET payment_method=$2, payment_state='pending', updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, method)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) SetOTP(ctx context.Context, tx repository.Tx, id string, code string, expiresAt time.Time) error {
	const q = `UPDATE subscriptions SET otp_code=$2, otp_expires_at=$3, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, code, expiresAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) ClearOTP(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE subscriptions SET otp_code=NULL, otp_expires_at=NULL, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// Confirm only moves a row forward: the WHERE clause makes re-confirmation a
// zero-row no-op, which the orchestrator relies on for idempotency.
func (r *subscriptionRepo) Confirm(ctx context.Context, tx repository.Tx, id, transactionRef string, paidAt time.Time) (bool, error) {
	const q = `
UPDATE subscriptions
SET payment_state='confirmed', status='active', active=TRUE,
    transaction_ref=$2, paid_at=$3, start_at=COALESCE(start_at, $3),
    end_at=COALESCE(end_at, $3 + INTERVAL '1 month'), updated_at=NOW()
WHERE id=$1 AND payment_state <> 'confirmed';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, transactionRef, paidAt)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionRepo) Reject(ctx context.Context, tx repository.Tx, id, notes string) error {
	const q = `
UPDATE subscriptions
SET payment_state='rejected', status='rejected', active=FALSE, notes=$2, updated_at=NOW()
WHERE id=$1 AND payment_state='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, notes)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotPending
	}
	return nil
}

func (r *subscriptionRepo) SetStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus, active bool) error {
	const q = `UPDATE subscriptions SET status=$2, active=$3, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status, active)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := row.Scan(&s.ID, &s.RestaurantID, &s.Plan, &s.MonthlyAmount, &s.Currency, &s.PaymentMethod, &s.PaymentState, &s.Status, &s.Active, &s.OTPCode, &s.OTPExpiresAt, &s.TransactionRef, &s.Notes, &s.StartAt, &s.EndAt, &s.PaidAt, &s.CreatedAt, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
