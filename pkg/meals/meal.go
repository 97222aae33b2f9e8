// Package meals implements the meal planner: per-user meals scheduled on a day
// of the week, with an optional image attachment.
package meals

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNameLength is the maximum meal name length in characters.
const MaxNameLength = 100

// days lists the accepted day names, keyed by their lower-case form.
var days = map[string]string{
	"monday":    "Monday",
	"tuesday":   "Tuesday",
	"wednesday": "Wednesday",
	"thursday":  "Thursday",
	"friday":    "Friday",
	"saturday":  "Saturday",
	"sunday":    "Sunday",
}

// Meal is one planned meal owned by a user.
type Meal struct {
	UserID        string    `json:"userId" db:"user_id"`
	MealID        string    `json:"mealId" db:"meal_id"`
	Name          string    `json:"name" db:"name"`
	DayOfWeek     string    `json:"dayOfWeek" db:"day_of_week"`
	Eaten         bool      `json:"eaten" db:"eaten"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	AttachmentURL string    `json:"attachmentUrl,omitempty" db:"attachment_url"`
}

// CreateMealRequest holds the fields of a new meal.
type CreateMealRequest struct {
	Name      string `json:"name"`
	DayOfWeek string `json:"dayOfWeek"`
}

// Validate checks the request and normalizes its fields in place.
func (r *CreateMealRequest) Validate() error {
	name, err := normalizeName(r.Name)
	if err != nil {
		return err
	}
	day, err := NormalizeDay(r.DayOfWeek)
	if err != nil {
		return err
	}
	r.Name, r.DayOfWeek = name, day
	return nil
}

// UpdateMealRequest replaces the mutable fields of a meal.
type UpdateMealRequest struct {
	Name      string `json:"name"`
	DayOfWeek string `json:"dayOfWeek"`
	Eaten     bool   `json:"eaten"`
}

// Validate checks the request and normalizes its fields in place.
func (r *UpdateMealRequest) Validate() error {
	name, err := normalizeName(r.Name)
	if err != nil {
		return err
	}
	day, err := NormalizeDay(r.DayOfWeek)
	if err != nil {
		return err
	}
	r.Name, r.DayOfWeek = name, day
	return nil
}

// NormalizeDay returns the canonical day name ("Monday") for a
// case-insensitive day name. Returns ErrInvalidMeal for anything else.
func NormalizeDay(day string) (string, error) {
	d, ok := days[strings.ToLower(strings.TrimSpace(day))]
	if !ok {
		return "", fmt.Errorf("day of week %q: %w", day, ErrInvalidMeal)
	}
	return d, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name is empty: %w", ErrInvalidMeal)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("name longer than %d characters: %w", MaxNameLength, ErrInvalidMeal)
	}
	return name, nil
}
