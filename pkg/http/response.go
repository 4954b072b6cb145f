package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope of every JSON API reply. Exactly one of Data
// and Errors is set.
type APIResponse struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Errors    interface{} `json:"errors,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// AppError is a failure that maps to a specific HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithParam attaches a detail the client can act on.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logs; it is never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func ConflictError(message string) *AppError {
	return NewAppError("ERR_CONFLICT", "", message, http.StatusConflict)
}

func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:    statusCode,
		Message:   http.StatusText(statusCode),
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func ErrorResponse(c echo.Context, statusCode int, errs interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:    statusCode,
		Message:   http.StatusText(statusCode),
		Errors:    errs,
		Timestamp: time.Now().UTC(),
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusCreated, data)
}

func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return ErrorResponse(c, http.StatusBadRequest, errs)
}

// AppErrorResponse writes err with its own status; anything else is a bare 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ErrorResponse(c, appErr.Status, []*AppError{appErr})
	}
	return ErrorResponse(c, http.StatusInternalServerError, []*AppError{InternalError("something went wrong")})
}
