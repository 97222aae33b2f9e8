package meals

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepworx/mealplan/pkg/postgres"
)

// Schema creates the meals table. Applied by Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS meals (
	user_id        TEXT        NOT NULL,
	meal_id        TEXT        NOT NULL,
	name           TEXT        NOT NULL,
	day_of_week    TEXT        NOT NULL,
	eaten          BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL,
	attachment_url TEXT,
	PRIMARY KEY (user_id, meal_id)
);
CREATE INDEX IF NOT EXISTS meals_user_created_idx ON meals (user_id, created_at DESC);
`

const selectColumns = `user_id, meal_id, name, day_of_week, eaten, created_at, COALESCE(attachment_url, '') AS attachment_url`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores meals in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate meals schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) db(tx postgres.Transaction) querier {
	if tx != nil {
		if t := tx.Tx(); t != nil {
			return t
		}
	}
	return r.pool
}

func (r *PostgresRepository) List(ctx context.Context, tx postgres.Transaction, userID string) ([]Meal, error) {
	rows, err := r.db(tx).Query(ctx,
		`SELECT `+selectColumns+` FROM meals WHERE user_id = $1 ORDER BY created_at DESC, meal_id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}

	meals, err := pgx.CollectRows(rows, pgx.RowToStructByName[Meal])
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	return meals, nil
}

func (r *PostgresRepository) Get(ctx context.Context, tx postgres.Transaction, userID, mealID string) (Meal, error) {
	rows, err := r.db(tx).Query(ctx,
		`SELECT `+selectColumns+` FROM meals WHERE user_id = $1 AND meal_id = $2`,
		userID, mealID)
	if err != nil {
		return Meal{}, fmt.Errorf("get meal %s: %w", mealID, err)
	}

	meal, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Meal])
	if errors.Is(err, pgx.ErrNoRows) {
		return Meal{}, fmt.Errorf("get meal %s: %w", mealID, ErrMealNotFound)
	}
	if err != nil {
		return Meal{}, fmt.Errorf("get meal %s: %w", mealID, err)
	}
	return meal, nil
}

func (r *PostgresRepository) Create(ctx context.Context, tx postgres.Transaction, meal Meal) error {
	_, err := r.db(tx).Exec(ctx,
		`INSERT INTO meals (user_id, meal_id, name, day_of_week, eaten, created_at, attachment_url)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
		meal.UserID, meal.MealID, meal.Name, meal.DayOfWeek, meal.Eaten, meal.CreatedAt, meal.AttachmentURL)
	if err != nil {
		return fmt.Errorf("create meal %s: %w", meal.MealID, err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, tx postgres.Transaction, meal Meal) error {
	tag, err := r.db(tx).Exec(ctx,
		`UPDATE meals SET name = $3, day_of_week = $4, eaten = $5 WHERE user_id = $1 AND meal_id = $2`,
		meal.UserID, meal.MealID, meal.Name, meal.DayOfWeek, meal.Eaten)
	if err != nil {
		return fmt.Errorf("update meal %s: %w", meal.MealID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update meal %s: %w", meal.MealID, ErrMealNotFound)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, tx postgres.Transaction, userID, mealID string) (string, error) {
	rows, err := r.db(tx).Query(ctx,
		`DELETE FROM meals WHERE user_id = $1 AND meal_id = $2
		 RETURNING COALESCE(attachment_url, '')`,
		userID, mealID)
	if err != nil {
		return "", fmt.Errorf("delete meal %s: %w", mealID, err)
	}

	attachment, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[string])
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("delete meal %s: %w", mealID, ErrMealNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("delete meal %s: %w", mealID, err)
	}
	return attachment, nil
}

// swapAttachmentSQL locks the row so concurrent swaps each see the URL the
// other one stored.
const swapAttachmentSQL = `
WITH previous AS (
	SELECT attachment_url FROM meals
	WHERE user_id = $1 AND meal_id = $2
	FOR UPDATE
)
UPDATE meals SET attachment_url = $3
FROM previous
WHERE meals.user_id = $1 AND meals.meal_id = $2
RETURNING COALESCE(previous.attachment_url, '')`

func (r *PostgresRepository) SwapAttachmentURL(ctx context.Context, tx postgres.Transaction, userID, mealID, url string) (string, error) {
	rows, err := r.db(tx).Query(ctx, swapAttachmentSQL, userID, mealID, url)
	if err != nil {
		return "", fmt.Errorf("set attachment of meal %s: %w", mealID, err)
	}

	previous, err := pgx.CollectExactlyOneRow(rows, pgx.RowTo[string])
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("set attachment of meal %s: %w", mealID, ErrMealNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("set attachment of meal %s: %w", mealID, err)
	}
	return previous, nil
}
