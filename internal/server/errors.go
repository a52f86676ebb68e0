package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	participationdomain "github.com/alimia7/achatons/internal/participation/domain"
	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/alimia7/achatons/pkg/db"
	"github.com/gin-gonic/gin"
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
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")

	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

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

	var tierErr *pricetierdomain.TierConfigError
	if errors.As(err, &tierErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid tier configuration",
			Errors: []ValidationError{
				{
					Field:   tierField(tierErr.TierNumber),
					Code:    tierErr.Err.Error(),
					Message: validationErrorMessage(tierErr.Err.Error()),
				},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
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

// classifyErrorForLog returns the error type and code recorded on the request
// log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
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
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isOfferValidationError(err),
		isParticipationValidationError(err):
		return true
	default:
		return false
	}
}

func isOfferValidationError(err error) bool {
	switch {
	case errors.Is(err, offerdomain.ErrInvalidID),
		errors.Is(err, offerdomain.ErrInvalidTitle),
		errors.Is(err, offerdomain.ErrInvalidBasePrice),
		errors.Is(err, offerdomain.ErrInvalidPricingModel),
		errors.Is(err, offerdomain.ErrInvalidQuantity),
		errors.Is(err, offerdomain.ErrInvalidDeadline),
		errors.Is(err, offerdomain.ErrInvalidTarget),
		errors.Is(err, offerdomain.ErrTiersNotAllowed),
		errors.Is(err, offerdomain.ErrAggregateOverflow),
		errors.Is(err, pricetierdomain.ErrInvalidTierConfiguration):
		return true
	default:
		return false
	}
}

func isParticipationValidationError(err error) bool {
	switch {
	case errors.Is(err, participationdomain.ErrInvalidID),
		errors.Is(err, participationdomain.ErrInvalidUser),
		errors.Is(err, participationdomain.ErrInvalidQuantity),
		errors.Is(err, participationdomain.ErrInvalidStatus):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, participationdomain.ErrInvalidTransition),
		errors.Is(err, participationdomain.ErrOfferClosed),
		errors.Is(err, db.ErrTransientConflict),
		db.IsDuplicateKeyErr(err):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, db.ErrTransientConflict):
		return "concurrent update, retry the request"
	case errors.Is(err, participationdomain.ErrOfferClosed):
		return "offer is not accepting participations"
	case errors.Is(err, participationdomain.ErrInvalidTransition):
		return "participation status cannot change that way"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, offerdomain.ErrNotFound),
		errors.Is(err, participationdomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, pricetierdomain.ErrInvalidTierConfiguration):
		return pricetierdomain.ErrInvalidTierConfiguration.Error()
	case errors.Is(err, offerdomain.ErrAggregateOverflow):
		return offerdomain.ErrAggregateOverflow.Error()
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case offerdomain.ErrAggregateOverflow.Error():
		return "quantity"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case offerdomain.ErrInvalidQuantity.Error():
		return "quantity must be between 1 and the per-participation maximum"
	case offerdomain.ErrAggregateOverflow.Error():
		return "quantity would overflow the offer totals"
	case pricetierdomain.ErrNoTiers.Error():
		return "at least one tier is required"
	case pricetierdomain.ErrTooManyTiers.Error():
		return "too many tiers"
	case pricetierdomain.ErrThresholdNotIncreasing.Error():
		return "tier thresholds must strictly increase"
	case pricetierdomain.ErrPriceNotDecreasing.Error():
		return "tier prices must strictly decrease"
	default:
		return "invalid value"
	}
}

func tierField(tierNumber int) string {
	if tierNumber <= 0 {
		return "tiers"
	}
	return fmt.Sprintf("tiers[%d]", tierNumber-1)
}
