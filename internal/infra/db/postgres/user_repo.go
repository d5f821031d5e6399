package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, restaurant_id, email, role, active, created_at, updated_at`

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, restaurant_id, email, role, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET restaurant_id=$2, email=$3, role=$4, active=$5, updated_at=$7;`
	var restaurantID *string
	if u.RestaurantID != "" {
		restaurantID = &u.RestaurantID
	}
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, restaurantID, u.Email, u.Role, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) FindAdminByRestaurant(ctx context.Context, tx repository.Tx, restaurantID string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE restaurant_id=$1 AND role='admin' ORDER BY created_at ASC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, restaurantID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) SetActive(ctx context.Context, tx repository.Tx, userID string, active bool) error {
	const q = `UPDATE users SET active=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, active)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	var restaurantID *string
	err := row.Scan(&u.ID, &restaurantID, &u.Email, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if restaurantID != nil {
		u.RestaurantID = *restaurantID
	}
	return u, nil
}
