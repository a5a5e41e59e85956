package users

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, full_name, picture_url, role, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, full_name, picture_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  full_name = EXCLUDED.full_name,
  picture_url = EXCLUDED.picture_url,
  updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		nullableString(user.Email),
		nullableString(user.FullName),
		nullableString(user.PictureURL),
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, userID))
}

func (r *PGRepo) SetRole(ctx context.Context, userID string, role Role) error {
	const query = `
INSERT INTO users (id, role, created_at, updated_at)
VALUES ($1, $2, now(), now())
ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query, userID, string(role))
	return err
}

func (r *PGRepo) SetBilling(ctx context.Context, userID string, role Role, billing Billing) error {
	const query = `
INSERT INTO users (id, role, stripe_customer_id, stripe_subscription_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (id) DO UPDATE SET
  role = EXCLUDED.role,
  stripe_customer_id = EXCLUDED.stripe_customer_id,
  stripe_subscription_id = EXCLUDED.stripe_subscription_id,
  updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query, userID, string(role),
		nullableString(billing.CustomerID), nullableString(billing.SubscriptionID))
	return err
}

func (r *PGRepo) FindBySubscriptionID(ctx context.Context, subscriptionID string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_subscription_id = $1 LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, subscriptionID))
}

func (r *PGRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	var email, fullName, pictureURL, customerID, subscriptionID sql.NullString
	var role string
	err := row.Scan(
		&user.ID,
		&email,
		&fullName,
		&pictureURL,
		&role,
		&customerID,
		&subscriptionID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.Email = email.String
	user.FullName = fullName.String
	user.PictureURL = pictureURL.String
	user.StripeCustomerID = customerID.String
	user.StripeSubscriptionID = subscriptionID.String
	user.Role = Role(role)
	return user, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
