package meals

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "canonical", input: "Monday", want: "Monday"},
		{name: "lower case", input: "friday", want: "Friday"},
		{name: "upper case with spaces", input: "  SUNDAY ", want: "Sunday"},
		{name: "empty", input: "", wantErr: true},
		{name: "abbreviation", input: "Mon", wantErr: true},
		{name: "unknown", input: "Someday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeDay(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMeal) {
					t.Errorf("NormalizeDay() error = %v, want %v", err, ErrInvalidMeal)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeDay() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeDay() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreateMealRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     CreateMealRequest
		want    CreateMealRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  CreateMealRequest{Name: " Pasta ", DayOfWeek: "tuesday"},
			want: CreateMealRequest{Name: "Pasta", DayOfWeek: "Tuesday"},
		},
		{
			name: "name at limit",
			req:  CreateMealRequest{Name: strings.Repeat("ä", MaxNameLength), DayOfWeek: "Monday"},
			want: CreateMealRequest{Name: strings.Repeat("ä", MaxNameLength), DayOfWeek: "Monday"},
		},
		{name: "blank name", req: CreateMealRequest{Name: "  ", DayOfWeek: "Monday"}, wantErr: true},
		{name: "name too long", req: CreateMealRequest{Name: strings.Repeat("a", MaxNameLength+1), DayOfWeek: "Monday"}, wantErr: true},
		{name: "bad day", req: CreateMealRequest{Name: "Pasta", DayOfWeek: "Funday"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := tt.req
			err := req.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMeal) {
					t.Errorf("Validate() error = %v, want %v", err, ErrInvalidMeal)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if req != tt.want {
				t.Errorf("Validate() normalized = %+v, want %+v", req, tt.want)
			}
		})
	}
}

func TestUpdateMealRequest_Validate(t *testing.T) {
	t.Parallel()

	req := UpdateMealRequest{Name: "Soup", DayOfWeek: "WEDNESDAY", Eaten: true}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := UpdateMealRequest{Name: "Soup", DayOfWeek: "Wednesday", Eaten: true}
	if req != want {
		t.Errorf("Validate() normalized = %+v, want %+v", req, want)
	}

	bad := UpdateMealRequest{Name: "", DayOfWeek: "Monday"}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMeal) {
		t.Errorf("Validate() error = %v, want %v", err, ErrInvalidMeal)
	}
}

func TestError_ConnectCode(t *testing.T) {
	t.Parallel()

	if got := ErrMealNotFound.ConnectCode().String(); got != "not_found" {
		t.Errorf("ErrMealNotFound code = %q, want not_found", got)
	}
	if got := ErrInvalidMeal.ConnectCode().String(); got != "invalid_argument" {
		t.Errorf("ErrInvalidMeal code = %q, want invalid_argument", got)
	}
	if got := ErrUnauthenticated.ConnectCode().String(); got != "unauthenticated" {
		t.Errorf("ErrUnauthenticated code = %q, want unauthenticated", got)
	}
}
