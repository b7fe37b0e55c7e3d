package postgrest

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultErrorMessage is used when the response body carries no message.
const DefaultErrorMessage = "PostgREST error"

// PostgREST and PostgreSQL error codes worth branching on.
const (
	CodeSingularityViolation = "PGRST116"
	CodeSchemaCacheStale     = "PGRST002"
	CodeJWTExpired           = "PGRST301"
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeNotNullViolation     = "23502"
	CodeInsufficientPrivs    = "42501"
	CodeUndefinedTable       = "42P01"
	CodeUndefinedFunction    = "42883"
)

// Static errors that can be wrapped with context.
var (
	ErrTransportRequired = errors.New("transport is required")
	ErrBaseURLRequired   = errors.New("base URL is required")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrInvalidMethod     = errors.New("invalid RPC method")
	ErrNilResponse       = errors.New("transport returned no response")
)

// Error is a normalized PostgREST failure response.
type Error struct {
	Status   int       `json:"status"            yaml:"status"`
	Code     string    `json:"code,omitempty"    yaml:"code,omitempty"`
	Message  string    `json:"message"           yaml:"message"`
	Details  any       `json:"details,omitempty" yaml:"details,omitempty"`
	Hint     any       `json:"hint,omitempty"    yaml:"hint,omitempty"`
	Response *Response `json:"-"                 yaml:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (status: %d, code: %s)", e.Message, e.Status, e.Code)
	}

	return fmt.Sprintf("%s (status: %d)", e.Message, e.Status)
}

// NormalizeError builds an Error from a failed response. Object bodies
// contribute message (falling back to error), code, details and hint; a
// string body becomes the message.
func NormalizeError(resp *Response) *Error {
	e := &Error{
		Status:   resp.Status,
		Message:  DefaultErrorMessage,
		Response: resp,
	}

	switch body := resp.Data.(type) {
	case map[string]any:
		if msg, ok := body["message"].(string); ok {
			e.Message = msg
		} else if msg, ok := body["error"].(string); ok {
			e.Message = msg
		}

		if code, ok := body["code"].(string); ok {
			e.Code = code
		}

		e.Details = body["details"]
		e.Hint = body["hint"]
	case string:
		e.Message = body
	}

	return e
}

// AsError extracts a normalized Error from err.
func AsError(err error) (*Error, bool) {
	var pgErr *Error
	if errors.As(err, &pgErr) {
		return pgErr, true
	}

	return nil, false
}

func hasStatus(err error, status int) bool {
	pgErr, ok := AsError(err)

	return ok && pgErr.Status == status
}

// IsNotFound checks if the error is a 404 response.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error is a 401 response.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error is a 403 response.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsConflict checks if the error is a 409 response or a unique violation.
func IsConflict(err error) bool {
	pgErr, ok := AsError(err)
	if !ok {
		return false
	}

	return pgErr.Status == http.StatusConflict || pgErr.Code == CodeUniqueViolation
}

// IsSingularityViolation checks if a singular response matched zero or many rows.
func IsSingularityViolation(err error) bool {
	pgErr, ok := AsError(err)

	return ok && pgErr.Code == CodeSingularityViolation
}
