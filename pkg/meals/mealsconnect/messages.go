package mealsconnect

import (
	"fmt"

	"github.com/deepworx/mealplan/pkg/meals"
)

// ListMealsRequest is empty; the caller is taken from the bearer token.
type ListMealsRequest struct{}

type ListMealsResponse struct {
	Items []meals.Meal `json:"items"`
}

// CreateMealRequest holds the fields of a new meal.
type CreateMealRequest = meals.CreateMealRequest

type CreateMealResponse struct {
	Item meals.Meal `json:"item"`
}

// UpdateMealRequest replaces the name, day and eaten flag of MealID.
type UpdateMealRequest struct {
	MealID    string `json:"mealId"`
	Name      string `json:"name"`
	DayOfWeek string `json:"dayOfWeek"`
	Eaten     bool   `json:"eaten"`
}

// Validate checks the request and normalizes name and day in place.
func (r *UpdateMealRequest) Validate() error {
	if r.MealID == "" {
		return fmt.Errorf("meal id is empty: %w", meals.ErrInvalidMeal)
	}
	upd := r.update()
	if err := upd.Validate(); err != nil {
		return err
	}
	r.Name, r.DayOfWeek = upd.Name, upd.DayOfWeek
	return nil
}

func (r *UpdateMealRequest) update() meals.UpdateMealRequest {
	return meals.UpdateMealRequest{Name: r.Name, DayOfWeek: r.DayOfWeek, Eaten: r.Eaten}
}

type UpdateMealResponse struct {
	Item meals.Meal `json:"item"`
}

type DeleteMealRequest struct {
	MealID string `json:"mealId"`
}

func (r *DeleteMealRequest) Validate() error {
	return requireMealID(r.MealID)
}

type DeleteMealResponse struct{}

type GenerateUploadURLRequest struct {
	MealID string `json:"mealId"`
}

func (r *GenerateUploadURLRequest) Validate() error {
	return requireMealID(r.MealID)
}

type GenerateUploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
}

func requireMealID(id string) error {
	if id == "" {
		return fmt.Errorf("meal id is empty: %w", meals.ErrInvalidMeal)
	}
	return nil
}
