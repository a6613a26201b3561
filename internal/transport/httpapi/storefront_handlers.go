package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// discountFor возвращает скидку текущего клиента; анонимный посетитель видит цены без скидки.
func discountFor(r *http.Request) decimal.Decimal {
	customer, err := session.CustomerFromContext(r.Context())
	if err != nil {
		return decimal.Zero
	}
	return customer.DiscountPercentage
}

// GET /api/v1/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Query:       strings.TrimSpace(q.Get("q")),
		InStockOnly: q.Get("in_stock") == "true",
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("ids"); raw != "" {
		filter.IDs = strings.Split(raw, ",")
	}

	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	pct := discountFor(r)
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, convertProduct(p, pct))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/products/{product_id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "product_id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertProduct(product, discountFor(r)))
}

// GET /api/v1/cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cart.Snapshot(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, c)
}

// GET /api/v1/cart/totals
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.cart.Totals(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertTotals(totals))
}

// POST /api/v1/cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := h.decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	var opts []cart.AddOption
	if req.AllowPlaceholder {
		opts = append(opts, cart.WithPlaceholder())
	}
	c, err := h.cart.Add(r.Context(), req.ProductID, req.Quantity, opts...)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusCreated, c)
}

// PUT /api/v1/cart/items/{product_id}
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if err := h.decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	c, err := h.cart.UpdateQuantity(r.Context(), chi.URLParam(r, "product_id"), *req.Quantity)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, c)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.cart.Remove(r.Context(), chi.URLParam(r, "product_id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, c)
}

// DELETE /api/v1/cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(r.Context()); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondCart отдаёт корзину вместе с итогами по скидке клиента.
func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, status int, c domain.Cart) {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, pricing.Line{Price: item.Product.Price, Quantity: item.Quantity})
	}
	respondJSON(w, status, convertCart(c, pricing.CartTotals(lines, discountFor(r))))
}

// GET /api/v1/wishlist
func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	list, err := h.wishlist.List(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertWishlist(list))
}

// POST /api/v1/wishlist/{product_id}/toggle
func (h *Handler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	present, err := h.wishlist.Toggle(r.Context(), productID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ToggleResponseDTO{ProductID: productID, Present: present})
}

// DELETE /api/v1/wishlist/{product_id}
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	list, err := h.wishlist.Remove(r.Context(), chi.URLParam(r, "product_id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertWishlist(list))
}

// POST /api/v1/session/logout — сбрасывает загруженные корзину и избранное клиента.
// Сохранённое состояние остаётся до следующего входа.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	customer, err := session.CustomerFromContext(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.cart.Forget(customer.ID)
	h.wishlist.Forget(customer.ID)
	w.WriteHeader(http.StatusNoContent)
}
