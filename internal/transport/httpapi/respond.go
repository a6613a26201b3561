package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

var (
	errInvalidJSON  = errors.New("invalid JSON body")
	errInvalidQuery = errors.New("invalid query parameter")
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// errorStatus сопоставляет ошибку ядра с HTTP-статусом и кодом ответа.
func errorStatus(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, errInvalidJSON), errors.Is(err, errInvalidQuery):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrOrderVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, idempotency.ErrRequestInProgress):
		return http.StatusConflict, "request_in_progress"
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, "idempotency_key_reused"
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrProductIDRequired),
		errors.Is(err, domain.ErrShippingAddressRequired),
		errors.Is(err, domain.ErrPaymentMethodRequired),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, domain.ErrInvalidCursor),
		errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondDomainError пишет ответ по ошибке ядра.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := h.errorBody(r, err)
	respondJSON(w, status, body)
}

// errorBody строит ответ по ошибке. Детали сбоев хранилища и внутренних ошибок
// наружу не отдаются.
func (h *Handler) errorBody(r *http.Request, err error) (int, ErrorResponse) {
	status, code := errorStatus(err)
	entry := h.logger.WithError(err).WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})

	body := ErrorResponse{Error: err.Error(), Code: code}
	switch {
	case status >= http.StatusInternalServerError:
		entry.Error("request failed")
		body.Error = http.StatusText(status)
	case code == "validation_failed":
		body.Error = "request validation failed"
		body.Details = validationDetails(err)
	default:
		entry.Debug("request rejected")
	}
	return status, body
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ""
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+": "+fe.Tag())
	}
	return strings.Join(fields, "; ")
}
