package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/repository"
)

var _ repository.RestaurantRepository = (*restaurantRepo)(nil)

type restaurantRepo struct{ pool *pgxpool.Pool }

func NewRestaurantRepo(pool *pgxpool.Pool) *restaurantRepo {
	return &restaurantRepo{pool: pool}
}

func (r *restaurantRepo) Save(ctx context.Context, tx repository.Tx, rest *model.Restaurant) error {
	const q = `
INSERT INTO restaurants (id, name, active, current_subscription_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name=$2, active=$3, current_subscription_id=$4, updated_at=$6;`
	_, err := execSQL(ctx, r.pool, tx, q, rest.ID, rest.Name, rest.Active, rest.CurrentSubscriptionID, rest.CreatedAt, rest.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *restaurantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Restaurant, error) {
	q := `SELECT id, name, active, current_subscription_id, created_at, updated_at FROM restaurants WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	rest := &model.Restaurant{}
	err = row.Scan(&rest.ID, &rest.Name, &rest.Active, &rest.CurrentSubscriptionID, &rest.CreatedAt, &rest.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return rest, nil
}

func (r *restaurantRepo) SetCurrentSubscription(ctx context.Context, tx repository.Tx, restaurantID, subscriptionID string) error {
	const q = `UPDATE restaurants SET current_subscription_id=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, restaurantID, subscriptionID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *restaurantRepo) SetActive(ctx context.Context, tx repository.Tx, restaurantID string, active bool) error {
	const q = `UPDATE restaurants SET active=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, restaurantID, active)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
