package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/invoice"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// IdempotencyKeyHeader — заголовок с ключом идемпотентности оформления.
const IdempotencyKeyHeader = "Idempotency-Key"

// POST /api/v1/checkout
//
// С заголовком Idempotency-Key повторный запрос с тем же телом получает
// сохранённый ответ первого, и второй заказ не создаётся.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	customer, err := session.CustomerFromContext(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if h.guard == nil || key == "" {
		resp := h.placeOrder(r, body)
		writeRaw(w, resp)
		return
	}

	resp, replayed, err := h.guard.Do(
		r.Context(),
		idempotency.ScopedKey(customer.ID, key),
		idempotency.HashRequest(r.Method, r.URL.Path, body),
		func(context.Context) idempotency.Response { return h.placeOrder(r, body) },
	)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeRaw(w, resp)
}

func (h *Handler) placeOrder(r *http.Request, body []byte) idempotency.Response {
	var req CheckoutRequestDTO
	if err := h.decodeBytes(body, &req); err != nil {
		return h.errorResponse(r, err)
	}

	result, err := h.checkout.PlaceOrder(r.Context(), req.ShippingAddress.toDomain(), strings.TrimSpace(req.PaymentMethod))
	if err != nil {
		return h.errorResponse(r, err)
	}

	payload, err := json.Marshal(CheckoutResponseDTO{
		Order:   convertOrder(result.Order),
		Invoice: convertInvoice(result.Invoice),
	})
	if err != nil {
		return h.errorResponse(r, fmt.Errorf("encode checkout response: %w", err))
	}
	return idempotency.Response{Status: http.StatusCreated, Body: payload}
}

func (h *Handler) errorResponse(r *http.Request, err error) idempotency.Response {
	status, body := h.errorBody(r, err)
	payload, _ := json.Marshal(body)
	return idempotency.Response{Status: status, Body: payload}
}

func writeRaw(w http.ResponseWriter, resp idempotency.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// GET /api/v1/orders?status=&limit=&cursor=
// Если страница заполнена, курсор следующей приходит в заголовке X-Next-Cursor.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customer, err := session.CustomerFromContext(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	query, err := parseOrderQuery(r.URL.Query())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	query.CustomerID = customer.ID

	orders, err := h.orders.List(r.Context(), query)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	if len(orders) == query.Limit {
		w.Header().Set(headerNextCursor, domain.CursorOf(orders[len(orders)-1]).Encode())
	}
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}

func parseOrderQuery(values url.Values) (domain.OrderQuery, error) {
	query := domain.OrderQuery{Limit: defaultOrdersLimit}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxOrdersLimit {
			return domain.OrderQuery{}, fmt.Errorf("%w: limit must be between 1 and %d", errInvalidQuery, maxOrdersLimit)
		}
		query.Limit = limit
	}
	if raw := values.Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return domain.OrderQuery{}, err
		}
		query.Status = status
	}
	if raw := values.Get("cursor"); raw != "" {
		cursor, err := domain.ParseOrderCursor(raw)
		if err != nil {
			return domain.OrderQuery{}, err
		}
		query.After = &cursor
	}
	return query, nil
}

// GET /api/v1/orders/{order_id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ownedOrder(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/orders/{order_id}/invoice
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	order, err := h.ownedOrder(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertInvoice(invoice.Render(order)))
}

// GET /api/v1/orders/{order_id}/timeline
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	order, err := h.ownedOrder(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	history, err := h.orders.History(r.Context(), order.ID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertTimeline(history))
}

// PATCH /api/v1/orders/{order_id}/status
// Покупатель может только отменить свой заказ до отправки, остальные переходы выполняет оператор.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequestDTO
	if err := h.decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	order, err := h.ownedOrder(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	customer, err := session.CustomerFromContext(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if err := authorizeStatusChange(customer, order, status); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	updated, err := h.orders.SetStatus(r.Context(), order.ID, status)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(updated))
}

func authorizeStatusChange(customer domain.Customer, order domain.Order, target domain.OrderStatus) error {
	if customer.IsOperator() || order.Status == target {
		return nil
	}
	if target != domain.OrderStatusCancelled {
		return fmt.Errorf("set order %s to %s: %w", order.ID, target, domain.ErrForbidden)
	}
	switch order.Status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing:
		return nil
	default:
		return fmt.Errorf("cancel order %s in status %s: %w", order.ID, order.Status, domain.ErrInvalidTransition)
	}
}

// ownedOrder загружает заказ текущего клиента. Чужой заказ выглядит как отсутствующий,
// оператору доступны все заказы.
func (h *Handler) ownedOrder(r *http.Request) (domain.Order, error) {
	customer, err := session.CustomerFromContext(r.Context())
	if err != nil {
		return domain.Order{}, err
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "order_id"))
	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !customer.IsOperator() && order.CustomerID != customer.ID {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return order, nil
}
