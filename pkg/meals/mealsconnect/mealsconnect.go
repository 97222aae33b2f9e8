// Package mealsconnect serves the meal planner over Connect RPC with JSON
// messages. Every procedure acts on behalf of the user identified by the
// bearer token, so handlers must run behind the jwtauth interceptor.
package mealsconnect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/deepworx/mealplan/pkg/connectrpc/jsoncodec"
	"github.com/deepworx/mealplan/pkg/ctxutil"
	"github.com/deepworx/mealplan/pkg/meals"
)

// MealServiceName is the fully-qualified name of the meal service.
const MealServiceName = "mealplan.v1.MealService"

// Procedure paths served by NewHandler.
const (
	ListMealsProcedure         = "/" + MealServiceName + "/ListMeals"
	CreateMealProcedure        = "/" + MealServiceName + "/CreateMeal"
	UpdateMealProcedure        = "/" + MealServiceName + "/UpdateMeal"
	DeleteMealProcedure        = "/" + MealServiceName + "/DeleteMeal"
	GenerateUploadURLProcedure = "/" + MealServiceName + "/GenerateUploadUrl"
)

// MealService is the domain service behind the handlers.
// Implemented by meals.Service.
type MealService interface {
	List(ctx context.Context, userID string) ([]meals.Meal, error)
	Create(ctx context.Context, userID string, req meals.CreateMealRequest) (meals.Meal, error)
	Update(ctx context.Context, userID, mealID string, req meals.UpdateMealRequest) (meals.Meal, error)
	Delete(ctx context.Context, userID, mealID string) error
	GenerateUploadURL(ctx context.Context, userID, mealID string) (string, error)
}

var _ MealService = (*meals.Service)(nil)

// NewHandler returns the path prefix and handler serving svc.
// The JSON codec is always installed; opts typically carry the interceptors.
func NewHandler(svc MealService, opts ...connect.HandlerOption) (string, http.Handler) {
	h := &handler{svc: svc}
	opts = append([]connect.HandlerOption{connect.WithCodec(jsoncodec.Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ListMealsProcedure, connect.NewUnaryHandler(ListMealsProcedure, h.listMeals, opts...))
	mux.Handle(CreateMealProcedure, connect.NewUnaryHandler(CreateMealProcedure, h.createMeal, opts...))
	mux.Handle(UpdateMealProcedure, connect.NewUnaryHandler(UpdateMealProcedure, h.updateMeal, opts...))
	mux.Handle(DeleteMealProcedure, connect.NewUnaryHandler(DeleteMealProcedure, h.deleteMeal, opts...))
	mux.Handle(GenerateUploadURLProcedure, connect.NewUnaryHandler(GenerateUploadURLProcedure, h.generateUploadURL, opts...))

	return "/" + MealServiceName + "/", mux
}

type handler struct {
	svc MealService
}

func (h *handler) listMeals(ctx context.Context, _ *connect.Request[ListMealsRequest]) (*connect.Response[ListMealsResponse], error) {
	items, err := h.svc.List(ctx, userID(ctx))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []meals.Meal{}
	}
	return connect.NewResponse(&ListMealsResponse{Items: items}), nil
}

func (h *handler) createMeal(ctx context.Context, req *connect.Request[CreateMealRequest]) (*connect.Response[CreateMealResponse], error) {
	meal, err := h.svc.Create(ctx, userID(ctx), *req.Msg)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&CreateMealResponse{Item: meal}), nil
}

func (h *handler) updateMeal(ctx context.Context, req *connect.Request[UpdateMealRequest]) (*connect.Response[UpdateMealResponse], error) {
	meal, err := h.svc.Update(ctx, userID(ctx), req.Msg.MealID, req.Msg.update())
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&UpdateMealResponse{Item: meal}), nil
}

func (h *handler) deleteMeal(ctx context.Context, req *connect.Request[DeleteMealRequest]) (*connect.Response[DeleteMealResponse], error) {
	if err := h.svc.Delete(ctx, userID(ctx), req.Msg.MealID); err != nil {
		return nil, err
	}
	return connect.NewResponse(&DeleteMealResponse{}), nil
}

func (h *handler) generateUploadURL(ctx context.Context, req *connect.Request[GenerateUploadURLRequest]) (*connect.Response[GenerateUploadURLResponse], error) {
	url, err := h.svc.GenerateUploadURL(ctx, userID(ctx), req.Msg.MealID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&GenerateUploadURLResponse{UploadURL: url}), nil
}

// userID is empty when the request carries no identity; the service
// rejects that with meals.ErrUnauthenticated.
func userID(ctx context.Context) string {
	id, _ := ctxutil.UserID(ctx)
	return id
}
