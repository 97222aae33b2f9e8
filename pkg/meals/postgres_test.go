package meals

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/deepworx/mealplan/pkg/postgres"
)

// newTestPostgresRepository connects to MEALPLAN_TEST_POSTGRES_DSN and skips
// the test when it is unset.
func newTestPostgresRepository(t *testing.T) (*PostgresRepository, postgres.UnitOfWork) {
	t.Helper()

	dsn := os.Getenv("MEALPLAN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEALPLAN_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.Config{DSN: dsn, MaxConns: 2, MinConns: 1})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	t.Cleanup(pool.Close)

	repo := NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM meals WHERE user_id LIKE 'pgtest-%'`); err != nil {
		t.Fatalf("cleanup error = %v", err)
	}

	return repo, postgres.NewUnitOfWork(pool)
}

func TestPostgresRepository(t *testing.T) {
	repo, uow := newTestPostgresRepository(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := Meal{UserID: "pgtest-1", MealID: "m-1", Name: "Pasta", DayOfWeek: "Monday", CreatedAt: created}
	newer := Meal{UserID: "pgtest-1", MealID: "m-2", Name: "Soup", DayOfWeek: "Tuesday", CreatedAt: created.Add(time.Hour)}

	err := uow.Execute(ctx, func(ctx context.Context, tx postgres.Transaction) error {
		if err := repo.Create(ctx, tx, older); err != nil {
			return err
		}
		return repo.Create(ctx, tx, newer)
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.List(ctx, nil, "pgtest-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]Meal{newer, older}, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	older.Eaten = true
	older.Name = "Lasagne"
	if err := repo.Update(ctx, nil, older); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	previous, err := repo.SwapAttachmentURL(ctx, nil, "pgtest-1", "m-1", "https://b.s3.amazonaws.com/img")
	if err != nil {
		t.Fatalf("SwapAttachmentURL() error = %v", err)
	}
	if previous != "" {
		t.Errorf("SwapAttachmentURL() previous = %q, want empty", previous)
	}
	previous, err = repo.SwapAttachmentURL(ctx, nil, "pgtest-1", "m-1", "https://b.s3.amazonaws.com/img")
	if err != nil {
		t.Fatalf("SwapAttachmentURL() error = %v", err)
	}
	if previous != "https://b.s3.amazonaws.com/img" {
		t.Errorf("SwapAttachmentURL() previous = %q", previous)
	}

	meal, err := repo.Get(ctx, nil, "pgtest-1", "m-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	older.AttachmentURL = "https://b.s3.amazonaws.com/img"
	if diff := cmp.Diff(older, meal); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	attachment, err := repo.Delete(ctx, nil, "pgtest-1", "m-1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if attachment != "https://b.s3.amazonaws.com/img" {
		t.Errorf("Delete() attachment = %q", attachment)
	}
	if _, err := repo.Get(ctx, nil, "pgtest-1", "m-1"); !errors.Is(err, ErrMealNotFound) {
		t.Errorf("Get() after delete error = %v, want %v", err, ErrMealNotFound)
	}
	if err := repo.Update(ctx, nil, older); !errors.Is(err, ErrMealNotFound) {
		t.Errorf("Update() after delete error = %v, want %v", err, ErrMealNotFound)
	}
	if _, err := repo.Get(ctx, nil, "pgtest-2", "m-2"); !errors.Is(err, ErrMealNotFound) {
		t.Errorf("Get() by another user error = %v, want %v", err, ErrMealNotFound)
	}
}
