// Package common holds the response envelope, RFC 9457 problem details and
// request binding shared by the HTTP handlers.
package common

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kichcoin/ledger/pkg/decorator"
	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

// SuccessResponseJSON writes the success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// RetryLaterDetail is shown when the store or a dependency is failing.
const RetryLaterDetail = "The service is temporarily unavailable, please retry later"

// ProblemDetailsJSON writes a problem response for err. The status comes from
// ErrorToStatusCode unless an int is passed in extra; a string in extra
// replaces the detail. Unclassified errors never leak their message.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, extra ...any) error {
	status := ErrorToStatusCode(err)
	detail := errorDetail(err, status)
	for _, e := range extra {
		switch v := e.(type) {
		case int:
			status = v
		case string:
			detail = v
		}
	}

	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.OriginalURL(),
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		pd.Errors = fields
	}
	return c.Status(status).JSON(pd, "application/problem+json")
}

// errorDetail returns the caller-facing text for err. Business errors keep
// their message at any status.
func errorDetail(err error, status int) string {
	switch {
	case err == nil:
		return ""
	case status < fiber.StatusInternalServerError,
		errors.Is(err, domain.ErrRatesUnavailable),
		errors.Is(err, domain.ErrRegulatorNotConfigured),
		errors.Is(err, domain.ErrHotWalletNotConfigured):
		return err.Error()
	case decorator.IsInfrastructure(err):
		return RetryLaterDetail
	}
	return ""
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	var fe *fiber.Error
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &verrs),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSameCard):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrUsernameTaken):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRatesUnavailable),
		errors.Is(err, domain.ErrRegulatorNotConfigured),
		errors.Is(err, domain.ErrHotWalletNotConfigured),
		decorator.IsInfrastructure(err):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// Returns a pointer to the struct (populated), or writes an error response and returns nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest)
	}
	return &input, nil
}

// ParseID reads a positive numeric path parameter.
func ParseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.Invalid(name, "must be a positive integer")
	}
	return uint(id), nil
}

// ParseAmount reads a decimal amount sent as a JSON string.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, domain.Invalid("amount", "must be a decimal number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, domain.Invalid("amount", "must be greater than zero")
	}
	return amount, nil
}
