package meals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/deepworx/mealplan/pkg/postgres"
	"github.com/deepworx/mealplan/pkg/slogutil"
	"github.com/deepworx/mealplan/pkg/tracing"
	"github.com/deepworx/mealplan/pkg/uploads"
)

// Storage holds meal images. Implemented by uploads.Store.
type Storage interface {
	PresignPut(ctx context.Context, key string) (string, error)
	AttachmentURL(key string) string
	Delete(ctx context.Context, key string) error
}

// Service implements the meal operations of one authenticated user.
type Service struct {
	repo    Repository
	uow     postgres.UnitOfWork
	storage Storage
	newID   func() string
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIDGenerator overrides how meal and image ids are generated.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = fn
	}
}

// NewService creates a Service.
func NewService(repo Repository, uow postgres.UnitOfWork, storage Storage, opts ...ServiceOption) *Service {
	s := &Service{
		repo:    repo,
		uow:     uow,
		storage: storage,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the user's meals, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Meal, error) {
	if userID == "" {
		return nil, fmt.Errorf("list meals: %w", ErrUnauthenticated)
	}

	return tracing.WithSpanResult(ctx, "meals.list", func(ctx context.Context) ([]Meal, error) {
		return s.repo.List(ctx, nil, userID)
	})
}

// Create stores a new, not yet eaten meal.
func (s *Service) Create(ctx context.Context, userID string, req CreateMealRequest) (Meal, error) {
	if userID == "" {
		return Meal{}, fmt.Errorf("create meal: %w", ErrUnauthenticated)
	}
	if err := req.Validate(); err != nil {
		return Meal{}, fmt.Errorf("create meal: %w", err)
	}

	meal := Meal{
		UserID:    userID,
		MealID:    s.newID(),
		Name:      req.Name,
		DayOfWeek: req.DayOfWeek,
		CreatedAt: s.now().UTC(),
	}

	err := tracing.WithSpan(ctx, "meals.create", func(ctx context.Context) error {
		return s.uow.Execute(ctx, func(ctx context.Context, tx postgres.Transaction) error {
			return s.repo.Create(ctx, tx, meal)
		})
	}, tracing.Attrs(attribute.String("meal.id", meal.MealID)))
	if err != nil {
		return Meal{}, err
	}

	slog.InfoContext(ctx, "meal created",
		slog.String("user_id", userID),
		slog.String("meal_id", meal.MealID),
	)
	return meal, nil
}

// Update replaces the name, day and eaten flag of a meal.
func (s *Service) Update(ctx context.Context, userID, mealID string, req UpdateMealRequest) (Meal, error) {
	if userID == "" {
		return Meal{}, fmt.Errorf("update meal: %w", ErrUnauthenticated)
	}
	if err := req.Validate(); err != nil {
		return Meal{}, fmt.Errorf("update meal: %w", err)
	}

	return tracing.WithSpanResult(ctx, "meals.update", func(ctx context.Context) (Meal, error) {
		var meal Meal
		err := s.uow.Execute(ctx, func(ctx context.Context, tx postgres.Transaction) error {
			err := s.repo.Update(ctx, tx, Meal{
				UserID:    userID,
				MealID:    mealID,
				Name:      req.Name,
				DayOfWeek: req.DayOfWeek,
				Eaten:     req.Eaten,
			})
			if err != nil {
				return err
			}
			meal, err = s.repo.Get(ctx, tx, userID, mealID)
			return err
		})
		return meal, err
	}, tracing.Attrs(attribute.String("meal.id", mealID)))
}

// Delete removes a meal and, best effort, its attached image.
func (s *Service) Delete(ctx context.Context, userID, mealID string) error {
	if userID == "" {
		return fmt.Errorf("delete meal: %w", ErrUnauthenticated)
	}

	return tracing.WithSpan(ctx, "meals.delete", func(ctx context.Context) error {
		var attachment string
		err := s.uow.Execute(ctx, func(ctx context.Context, tx postgres.Transaction) error {
			var err error
			attachment, err = s.repo.Delete(ctx, tx, userID, mealID)
			return err
		})
		if err != nil {
			return err
		}

		s.deleteAttachment(ctx, attachment)
		return nil
	}, tracing.Attrs(attribute.String("meal.id", mealID)))
}

// GenerateUploadURL points the meal at a new image and returns a presigned
// URL to upload it to. The previous image, if any, is deleted best effort.
func (s *Service) GenerateUploadURL(ctx context.Context, userID, mealID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("generate upload url: %w", ErrUnauthenticated)
	}

	return tracing.WithSpanResult(ctx, "meals.generate_upload_url", func(ctx context.Context) (string, error) {
		imageID := s.newID()

		uploadURL, err := s.storage.PresignPut(ctx, imageID)
		if err != nil {
			return "", fmt.Errorf("generate upload url: %w", err)
		}

		var previous string
		err = s.uow.Execute(ctx, func(ctx context.Context, tx postgres.Transaction) error {
			var err error
			previous, err = s.repo.SwapAttachmentURL(ctx, tx, userID, mealID, s.storage.AttachmentURL(imageID))
			return err
		})
		if err != nil {
			return "", err
		}

		s.deleteAttachment(ctx, previous)
		return uploadURL, nil
	}, tracing.Attrs(attribute.String("meal.id", mealID)))
}

func (s *Service) deleteAttachment(ctx context.Context, url string) {
	if url == "" {
		return
	}
	key := uploads.KeyFromURL(url)
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to delete meal image",
			slog.String("key", key),
			slogutil.Err(err),
		)
	}
}
