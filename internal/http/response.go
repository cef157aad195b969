package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// Error codes returned in the "code" field of every error body.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeUnavailable      = "UNAVAILABLE"
	CodeInternal         = "INTERNAL"
	CodeRateLimited      = "RATE_LIMITED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ResponseBuilder assembles a JSON response.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a builder with a 200 status and no body.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body writes only the status line.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"INTERNAL","message":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
}

// ErrorResponse creates an error response with the standard body.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(ErrorBody{Code: code, Message: message})
}

// ValidationErrorResponse is a 422 listing a message per invalid field.
func ValidationErrorResponse(fields map[string]string) *ResponseBuilder {
	return NewResponse().
		Status(http.StatusUnprocessableEntity).
		JSON(ErrorBody{Code: CodeInvalidInput, Message: "validation failed", Fields: fields})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeInvalidInput, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, message).
		Header("WWW-Authenticate", `Bearer realm="fintrack"`)
}

func UnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, message)
}

func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal error")
}

// errorFor maps a service error onto its response. Unknown errors are logged
// and reported as INTERNAL without details.
func errorFor(r *http.Request, err error) *ResponseBuilder {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		return ValidationErrorResponse(map[string]string{ve.Field: ve.Err.Error()})
	case errors.Is(err, auth.ErrInvalidEmail):
		return ValidationErrorResponse(map[string]string{"email": err.Error()})
	case errors.Is(err, auth.ErrPasswordTooShort):
		return ValidationErrorResponse(map[string]string{"password": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return UnauthorizedError(err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		return ErrorResponse(http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, store.ErrConflict):
		return ErrorResponse(http.StatusConflict, CodeConflict, "resource already exists")
	case errors.Is(err, store.ErrNotFound):
		return NotFoundError("resource not found")
	case errors.Is(err, rates.ErrUnavailable):
		return UnavailableError("exchange rates are unavailable, try again later")
	}

	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
	return InternalServerError()
}
