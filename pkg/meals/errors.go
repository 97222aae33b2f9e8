package meals

import "connectrpc.com/connect"

// Error is a meals domain error carrying its Connect code.
type Error struct {
	msg  string
	code connect.Code
}

func (e *Error) Error() string {
	return e.msg
}

// ConnectCode implements errors.ConnectCoder.
func (e *Error) ConnectCode() connect.Code {
	return e.code
}

var (
	// ErrMealNotFound is returned when the meal does not exist for the caller.
	ErrMealNotFound = &Error{msg: "meal not found", code: connect.CodeNotFound}

	// ErrInvalidMeal is returned when a create or update request is invalid.
	ErrInvalidMeal = &Error{msg: "invalid meal", code: connect.CodeInvalidArgument}

	// ErrUnauthenticated is returned when no user id is available.
	ErrUnauthenticated = &Error{msg: "user id is required", code: connect.CodeUnauthenticated}
)
