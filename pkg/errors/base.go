package errors

import "net/http"

// Service codes.
const (
	ServiceCommon    = 0
	ServiceKnowledge = 20
	ServicePhenotype = 21
)

// Category codes.
const (
	CategorySuccess  = 0
	CategoryRequest  = 1
	CategoryNotFound = 4
	CategoryConflict = 5
	CategoryInternal = 7
	CategoryDatabase = 8
	CategoryUpstream = 10
	CategoryTimeout  = 11
	CategoryConfig   = 12
)

// Common errors shared by all services.
var (
	// OK is the success sentinel.
	OK = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategorySuccess, 0),
		HTTP:    http.StatusOK,
		Message: "OK",
	})

	// ErrInvalidParam indicates a malformed or missing request parameter.
	ErrInvalidParam = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:    http.StatusBadRequest,
		Message: "Invalid parameter",
	})

	// ErrNotFound indicates a missing resource.
	ErrNotFound = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryNotFound, 1),
		HTTP:    http.StatusNotFound,
		Message: "Resource not found",
	})

	// ErrInternal is the catch-all internal error.
	ErrInternal = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryInternal, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Internal server error",
	})

	// ErrDatabase indicates a metadata store failure.
	ErrDatabase = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryDatabase, 1),
		HTTP:    http.StatusInternalServerError,
		Message: "Database error",
	})

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = Register(&Errno{
		Code:    MakeCode(ServiceCommon, CategoryTimeout, 1),
		HTTP:    http.StatusGatewayTimeout,
		Message: "Operation timed out",
	})
)
