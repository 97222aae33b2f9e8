package meals

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/deepworx/mealplan/pkg/postgres"
)

// Repository persists meals. Writes run inside the transaction passed by the
// caller; a nil tx, or one whose Tx() is nil, means no transaction.
type Repository interface {
	// List returns the user's meals, newest first.
	List(ctx context.Context, tx postgres.Transaction, userID string) ([]Meal, error)

	// Get returns ErrMealNotFound when the meal does not exist.
	Get(ctx context.Context, tx postgres.Transaction, userID, mealID string) (Meal, error)

	Create(ctx context.Context, tx postgres.Transaction, meal Meal) error

	// Update returns ErrMealNotFound when the meal does not exist.
	Update(ctx context.Context, tx postgres.Transaction, meal Meal) error

	// Delete removes the meal and returns its attachment URL, empty when it had
	// none. Returns ErrMealNotFound when the meal does not exist.
	Delete(ctx context.Context, tx postgres.Transaction, userID, mealID string) (string, error)

	// SwapAttachmentURL stores url and returns the previous attachment URL in a
	// single step. Returns ErrMealNotFound when the meal does not exist.
	SwapAttachmentURL(ctx context.Context, tx postgres.Transaction, userID, mealID, url string) (string, error)
}

type mealKey struct {
	userID string
	mealID string
}

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	meals map[mealKey]Meal
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{meals: make(map[mealKey]Meal)}
}

func (r *MemoryRepository) List(_ context.Context, _ postgres.Transaction, userID string) ([]Meal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Meal, 0)
	for k, m := range r.meals {
		if k.userID == userID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Meal) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.MealID, a.MealID)
	})
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, _ postgres.Transaction, userID, mealID string) (Meal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.meals[mealKey{userID, mealID}]
	if !ok {
		return Meal{}, fmt.Errorf("get meal %s: %w", mealID, ErrMealNotFound)
	}
	return m, nil
}

func (r *MemoryRepository) Create(_ context.Context, _ postgres.Transaction, meal Meal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.meals[mealKey{meal.UserID, meal.MealID}] = meal
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, _ postgres.Transaction, meal Meal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := mealKey{meal.UserID, meal.MealID}
	cur, ok := r.meals[k]
	if !ok {
		return fmt.Errorf("update meal %s: %w", meal.MealID, ErrMealNotFound)
	}
	cur.Name = meal.Name
	cur.DayOfWeek = meal.DayOfWeek
	cur.Eaten = meal.Eaten
	r.meals[k] = cur
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, _ postgres.Transaction, userID, mealID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := mealKey{userID, mealID}
	cur, ok := r.meals[k]
	if !ok {
		return "", fmt.Errorf("delete meal %s: %w", mealID, ErrMealNotFound)
	}
	delete(r.meals, k)
	return cur.AttachmentURL, nil
}

func (r *MemoryRepository) SwapAttachmentURL(_ context.Context, _ postgres.Transaction, userID, mealID, url string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := mealKey{userID, mealID}
	cur, ok := r.meals[k]
	if !ok {
		return "", fmt.Errorf("set attachment of meal %s: %w", mealID, ErrMealNotFound)
	}
	previous := cur.AttachmentURL
	cur.AttachmentURL = url
	r.meals[k] = cur
	return previous, nil
}

// compile-time checks
var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
