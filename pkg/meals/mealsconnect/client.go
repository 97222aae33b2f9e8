package mealsconnect

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/deepworx/mealplan/pkg/connectrpc/jsoncodec"
)

// Client calls a MealService served by NewHandler.
type Client struct {
	list      *connect.Client[ListMealsRequest, ListMealsResponse]
	create    *connect.Client[CreateMealRequest, CreateMealResponse]
	update    *connect.Client[UpdateMealRequest, UpdateMealResponse]
	del       *connect.Client[DeleteMealRequest, DeleteMealResponse]
	uploadURL *connect.Client[GenerateUploadURLRequest, GenerateUploadURLResponse]
}

// NewClient creates a Client for the service at baseURL
// (e.g. "https://api.example.com").
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsoncodec.Codec{})}, opts...)

	return &Client{
		list:      connect.NewClient[ListMealsRequest, ListMealsResponse](httpClient, baseURL+ListMealsProcedure, opts...),
		create:    connect.NewClient[CreateMealRequest, CreateMealResponse](httpClient, baseURL+CreateMealProcedure, opts...),
		update:    connect.NewClient[UpdateMealRequest, UpdateMealResponse](httpClient, baseURL+UpdateMealProcedure, opts...),
		del:       connect.NewClient[DeleteMealRequest, DeleteMealResponse](httpClient, baseURL+DeleteMealProcedure, opts...),
		uploadURL: connect.NewClient[GenerateUploadURLRequest, GenerateUploadURLResponse](httpClient, baseURL+GenerateUploadURLProcedure, opts...),
	}
}

func (c *Client) ListMeals(ctx context.Context, req *connect.Request[ListMealsRequest]) (*connect.Response[ListMealsResponse], error) {
	return c.list.CallUnary(ctx, req)
}

func (c *Client) CreateMeal(ctx context.Context, req *connect.Request[CreateMealRequest]) (*connect.Response[CreateMealResponse], error) {
	return c.create.CallUnary(ctx, req)
}

func (c *Client) UpdateMeal(ctx context.Context, req *connect.Request[UpdateMealRequest]) (*connect.Response[UpdateMealResponse], error) {
	return c.update.CallUnary(ctx, req)
}

func (c *Client) DeleteMeal(ctx context.Context, req *connect.Request[DeleteMealRequest]) (*connect.Response[DeleteMealResponse], error) {
	return c.del.CallUnary(ctx, req)
}

func (c *Client) GenerateUploadURL(ctx context.Context, req *connect.Request[GenerateUploadURLRequest]) (*connect.Response[GenerateUploadURLResponse], error) {
	return c.uploadURL.CallUnary(ctx, req)
}
