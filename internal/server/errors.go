package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	invoicedomain "github.com/voyara/voyara/internal/invoice/domain"
	partnerdomain "github.com/voyara/voyara/internal/partner/domain"
	payoutdomain "github.com/voyara/voyara/internal/payout/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware converts errors recorded on the gin context into
// one JSON error envelope. Handlers report failures with AbortWithError and
// never write error bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isStateConflict(err):
		// StateError messages carry the entity id, its current status,
		// and the attempted transition.
		return http.StatusConflict, errorPayload{
			Type:    "state_conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, partnerdomain.ErrInvalidPartner),
		errors.Is(err, partnerdomain.ErrInvalidName),
		errors.Is(err, partnerdomain.ErrInvalidStatus),
		errors.Is(err, commissiondomain.ErrInvalidPartner),
		errors.Is(err, commissiondomain.ErrInvalidBaseRate),
		errors.Is(err, commissiondomain.ErrInvalidCurrency),
		errors.Is(err, commissiondomain.ErrInvalidType),
		errors.Is(err, commissiondomain.ErrInvalidTierRange),
		errors.Is(err, commissiondomain.ErrOverlappingTiers),
		errors.Is(err, commissiondomain.ErrTierGap),
		errors.Is(err, commissiondomain.ErrInvalidBonusRule),
		errors.Is(err, commissiondomain.ErrInvalidBooking),
		errors.Is(err, commissiondomain.ErrInvalidCalculation),
		errors.Is(err, payoutdomain.ErrNoPartners),
		errors.Is(err, payoutdomain.ErrInvalidPeriod),
		errors.Is(err, payoutdomain.ErrInvalidPartner),
		errors.Is(err, invoicedomain.ErrInvalidType),
		errors.Is(err, invoicedomain.ErrInvalidCustomer),
		errors.Is(err, invoicedomain.ErrInvalidCurrency),
		errors.Is(err, invoicedomain.ErrInvalidLineItem),
		errors.Is(err, invoicedomain.ErrInvalidPayment):
		return true
	default:
		return false
	}
}

func isStateConflict(err error) bool {
	return errors.Is(err, commissiondomain.ErrStateConflict) ||
		errors.Is(err, invoicedomain.ErrStateConflict)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, partnerdomain.ErrNotFound),
		errors.Is(err, commissiondomain.ErrPartnerNotFound),
		errors.Is(err, commissiondomain.ErrNoActiveStructure),
		errors.Is(err, commissiondomain.ErrCalculationNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
